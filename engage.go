// Package engage is a client-side SDK that coordinates support engagements
// for a host application: chat, audio/video calls, secure messaging, media
// upgrades and the post-engagement survey flow. The host supplies the UI
// (window, prompts, surveys); the SDK owns session state and talks to the
// engagement backend.
//
// All verbs are safe to call from any goroutine; they are marshaled onto a
// single control loop started by Run.
package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/engageworks/engage-go/internal/auth"
	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/config"
	"github.com/engageworks/engage-go/internal/confirm"
	"github.com/engageworks/engage-go/internal/engagement"
	"github.com/engageworks/engage-go/internal/journal"
	"github.com/engageworks/engage-go/internal/journal/sqlite"
	"github.com/engageworks/engage-go/internal/log"
	"github.com/engageworks/engage-go/internal/media"
	"github.com/engageworks/engage-go/internal/media/livekit"
	"github.com/engageworks/engage-go/internal/presentation"
	"github.com/engageworks/engage-go/internal/survey"
)

// Version is the SDK version reported in the socket hello.
const Version = "0.3.0"

// Host-facing types. The SDK's internal packages own the definitions; the
// aliases here are the supported import surface.
type (
	// Config holds SDK configuration. Build it by hand starting from
	// DefaultConfig, or load it from file and environment.
	Config = config.Config

	// Kind is the media type of an engagement.
	Kind = engagement.Kind
	// Intent describes what the visitor asked to start.
	Intent = engagement.Intent
	// Event is delivered on the host event stream.
	Event = engagement.Event
	// EventKind tags a host event.
	EventKind = engagement.EventKind

	// Prompt is a yes/no confirmation awaiting the visitor's decision.
	Prompt = confirm.Pending
	// PromptKind tags what a prompt is asking about.
	PromptKind = confirm.Kind
	// Outcome is a prompt's resolution.
	Outcome = confirm.Outcome

	// WindowPresenter shows and hides the engagement surface.
	WindowPresenter = presentation.WindowPresenter
	// PromptPresenter renders confirmation prompts.
	PromptPresenter = confirm.Presenter
	// SurveyPresenter renders the post-engagement survey and errors.
	SurveyPresenter = survey.Presenter

	// JoinInfo carries media join credentials for call modes.
	JoinInfo = media.JoinInfo

	// Survey is a post-engagement survey definition.
	Survey = backend.Survey
	// SurveyQuestion is a single survey question.
	SurveyQuestion = backend.SurveyQuestion
	// SurveyAnswer is the visitor's answer to one question.
	SurveyAnswer = backend.SurveyAnswer
)

const (
	KindNone      = engagement.KindNone
	KindChat      = engagement.KindChat
	KindAudioCall = engagement.KindAudioCall
	KindVideoCall = engagement.KindVideoCall
	KindMessaging = engagement.KindMessaging

	EventStarted     = engagement.EventStarted
	EventKindChanged = engagement.EventKindChanged
	EventEnded       = engagement.EventEnded
	EventClosed      = engagement.EventClosed
	EventMinimized   = engagement.EventMinimized
	EventMaximized   = engagement.EventMaximized

	Accepted = confirm.Accepted
	Declined = confirm.Declined
)

// Sentinel errors returned by session verbs.
var (
	ErrNotStarted     = engagement.ErrNotStarted
	ErrAlreadyStarted = engagement.ErrAlreadyStarted
	ErrInvalidKind    = engagement.ErrInvalidKind
	ErrBadTransition  = engagement.ErrBadTransition
)

// Direct builds an intent that starts exactly the given kind.
func Direct(kind Kind) Intent { return engagement.Direct(kind) }

// Indirect builds an intent that starts kind but remembers initialKind, so
// back-navigation out of a pending secure conversation returns to it.
func Indirect(kind, initialKind Kind) Intent { return engagement.Indirect(kind, initialKind) }

// Messaging builds a direct secure-messaging intent opening initialScreen.
func Messaging(initialScreen string) Intent { return engagement.Messaging(initialScreen) }

// DefaultConfig returns configuration with starter defaults.
func DefaultConfig() Config { return config.Default() }

// UI bundles the presenters the host must supply.
type UI struct {
	Window  WindowPresenter
	Prompts PromptPresenter
	Surveys SurveyPresenter
}

// Client is the host's handle on one visitor session.
type Client struct {
	coord   *engagement.Coordinator
	backend backend.Client
	journal journal.Journal
}

// New dials the engagement backend and builds a session client for the
// visitor. The caller must start Run before issuing verbs and should Close
// the client when done.
func New(ctx context.Context, cfg Config, visitorID string, ui UI) (*Client, error) {
	if ui.Window == nil || ui.Prompts == nil || ui.Surveys == nil {
		return nil, fmt.Errorf("engage: all UI presenters are required")
	}

	logger := log.New(cfg.LogLevel)

	opts := backend.SocketOptions{
		URL:            cfg.SocketURL,
		SiteID:         cfg.SiteID,
		VisitorID:      visitorID,
		Version:        Version,
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
	}
	if cfg.VisitorSecret != "" {
		opts.Token = &auth.TokenConfig{
			Secret:   []byte(cfg.VisitorSecret),
			Issuer:   cfg.VisitorIssuer,
			Audience: cfg.VisitorAudience,
			TTL:      time.Hour,
		}
	}

	client, err := backend.Dial(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("engage: dial backend: %w", err)
	}

	var store journal.Journal
	if cfg.JournalPath != "" {
		s, err := sqlite.New(cfg.JournalPath)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("engage: open journal: %w", err)
		}
		store = s
	}

	var engine media.Engine
	if cfg.Media.Enabled {
		engine = livekit.New(cfg.Media.APIKey, cfg.Media.APISecret, cfg.Media.WSURL)
	}

	coord, err := engagement.New(engagement.Options{
		Backend:        client,
		Window:         ui.Window,
		Prompts:        ui.Prompts,
		Surveys:        ui.Surveys,
		Engine:         engine,
		Journal:        store,
		Logger:         logger,
		VisitorID:      visitorID,
		ShowSurvey:     cfg.ShowSurvey,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		client.Close()
		return nil, err
	}

	return &Client{coord: coord, backend: client, journal: store}, nil
}

// Run drives the session control loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error { return c.coord.Run(ctx) }

// Events returns the host event stream.
func (c *Client) Events() <-chan Event { return c.coord.Events() }

// Start begins an engagement described by the intent.
func (c *Client) Start(ctx context.Context, intent Intent) error {
	return c.coord.Start(ctx, intent)
}

// Back steps backward one screen; what that means depends on the mode.
func (c *Client) Back(ctx context.Context) error { return c.coord.Back(ctx) }

// SwitchTo leaves secure messaging for a live engagement kind.
func (c *Client) SwitchTo(ctx context.Context, kind Kind) error {
	return c.coord.SwitchTo(ctx, kind)
}

// End tears the session down, optionally presenting a survey.
func (c *Client) End(ctx context.Context, presentSurvey bool) error {
	return c.coord.End(ctx, presentSurvey)
}

// Minimize shrinks the engagement surface to its bubble.
func (c *Client) Minimize(ctx context.Context) error { return c.coord.Minimize(ctx) }

// Maximize restores the engagement surface.
func (c *Client) Maximize(ctx context.Context) error { return c.coord.Maximize(ctx) }

// StopScreenShare stops an active screen share, after confirmation.
func (c *Client) StopScreenShare(ctx context.Context) error {
	return c.coord.StopScreenShare(ctx)
}

// Close releases the backend connection and the journal.
func (c *Client) Close() error {
	var first error
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			first = err
		}
	}
	if err := c.backend.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
