// Package engagement coordinates the lifecycle of a support session: which
// mode is live, how the visitor moves between modes, and how the session is
// torn down.
package engagement

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/confirm"
	"github.com/engageworks/engage-go/internal/journal"
	"github.com/engageworks/engage-go/internal/media"
	"github.com/engageworks/engage-go/internal/presentation"
	"github.com/engageworks/engage-go/internal/survey"
	"github.com/engageworks/engage-go/internal/upgrade"
)

// Options wires the coordinator's collaborators. Backend, Window, Prompts,
// Surveys and Logger are required; Engine and Journal are optional.
type Options struct {
	Backend backend.Client
	Window  presentation.WindowPresenter
	Prompts confirm.Presenter
	Surveys survey.Presenter
	Engine  media.Engine
	Journal journal.Journal
	Logger  *zerolog.Logger

	VisitorID string

	// ShowSurvey requests survey presentation for backend-driven ends.
	ShowSurvey bool

	RequestTimeout time.Duration
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdBack
	cmdSwitchTo
	cmdEnd
	cmdMinimize
	cmdMaximize
	cmdStopScreenShare
)

type command struct {
	kind          cmdKind
	intent        Intent
	to            Kind
	presentSurvey bool
	errc          chan error
}

type backendEventKind int

const (
	evState backendEventKind = iota
	evOffer
	evShare
	evUnread
	evEnqueueResult
)

type backendEvent struct {
	kind   backendEventKind
	state  backend.EngagementState
	offer  backend.MediaUpgradeOffer
	answer *upgrade.Answer
	share  backend.ScreenShareState
	unread int
	ticket backend.QueueTicket
	err    error
}

// Coordinator is the engagement session coordinator. All state lives on a
// single control goroutine (Run); visitor verbs and backend pushes are
// marshaled onto it and each transition runs to completion before the next
// event is processed.
type Coordinator struct {
	backend backend.Client
	engine  media.Engine
	journal journal.Journal
	log     *zerolog.Logger

	mediator   *confirm.Mediator
	negotiator *upgrade.Negotiator
	window     *presentation.Controller
	surveys    *survey.Resolver

	visitorID  string
	showSurvey bool
	reqTimeout time.Duration

	commands      chan command
	backendEvents chan backendEvent
	events        chan Event
	deferred      []backendEvent

	running atomic.Bool
	runCtx  context.Context

	intent     Intent
	mode       Mode
	surfaceID  string
	ticket     *backend.QueueTicket
	enqueueing bool
	share      backend.ScreenShareState
	lastState  backend.EngagementState
}

// New builds a coordinator and subscribes it to backend pushes.
func New(opts Options) (*Coordinator, error) {
	if opts.Backend == nil || opts.Window == nil || opts.Prompts == nil || opts.Surveys == nil || opts.Logger == nil {
		return nil, errors.New("coordinator requires backend, window, prompts, surveys and logger")
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	c := &Coordinator{
		backend:       opts.Backend,
		engine:        opts.Engine,
		journal:       opts.Journal,
		log:           opts.Logger,
		visitorID:     opts.VisitorID,
		showSurvey:    opts.ShowSurvey,
		reqTimeout:    opts.RequestTimeout,
		commands:      make(chan command),
		backendEvents: make(chan backendEvent, 64),
		events:        make(chan Event, 16),
		intent:        Direct(KindNone),
		mode:          noneMode(),
		share:         backend.ScreenShareInactive,
		lastState:     backend.EngagementState{Phase: backend.PhaseNone},
	}

	c.mediator = confirm.New(opts.Prompts, opts.Logger)
	c.negotiator = upgrade.New(c.mediator, c.awaitDecision, opts.Logger)
	c.window = presentation.New(opts.Window, opts.Logger)
	c.surveys = survey.New(opts.Backend, opts.Surveys, opts.Logger)

	c.backend.SubscribeEngagementState(func(s backend.EngagementState) {
		c.post(backendEvent{kind: evState, state: s})
	})
	c.backend.SubscribeMediaUpgradeOffers(func(offer backend.MediaUpgradeOffer, answer backend.AnswerFunc) {
		c.post(backendEvent{kind: evOffer, offer: offer, answer: upgrade.NewAnswer(answer)})
	})
	c.backend.SubscribeScreenShareState(func(s backend.ScreenShareState) {
		c.post(backendEvent{kind: evShare, share: s})
	})
	c.backend.SubscribeUnreadCount(func(n int) {
		c.post(backendEvent{kind: evUnread, unread: n})
	})

	return c, nil
}

// Events returns the host event stream.
func (c *Coordinator) Events() <-chan Event { return c.events }

// Run processes visitor verbs and backend events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	c.runCtx = ctx

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.commands:
			cmd.errc <- c.handleCommand(cmd)
			c.drainDeferred()
		case ev := <-c.backendEvents:
			c.handleBackendEvent(ev)
			c.drainDeferred()
		}
	}
}

// Start begins an engagement described by the intent.
func (c *Coordinator) Start(ctx context.Context, intent Intent) error {
	return c.do(ctx, command{kind: cmdStart, intent: intent})
}

// Back steps backward one screen; what that means depends on the mode.
func (c *Coordinator) Back(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdBack})
}

// SwitchTo leaves secure messaging for the given kind, replacing any
// outstanding queue ticket.
func (c *Coordinator) SwitchTo(ctx context.Context, kind Kind) error {
	return c.do(ctx, command{kind: cmdSwitchTo, to: kind})
}

// End tears the session down, optionally presenting a survey.
func (c *Coordinator) End(ctx context.Context, presentSurvey bool) error {
	return c.do(ctx, command{kind: cmdEnd, presentSurvey: presentSurvey})
}

// Minimize shrinks the engagement surface to its bubble.
func (c *Coordinator) Minimize(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdMinimize})
}

// Maximize restores the engagement surface.
func (c *Coordinator) Maximize(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdMaximize})
}

// StopScreenShare asks to stop an active screen share, after confirmation.
func (c *Coordinator) StopScreenShare(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdStopScreenShare})
}

func (c *Coordinator) do(ctx context.Context, cmd command) error {
	cmd.errc = make(chan error, 1)
	select {
	case c.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post marshals a backend push onto the control loop. Overflow drops the
// push, except a terminal state change: the session-ended signal must land,
// so it is delivered from its own goroutine instead.
func (c *Coordinator) post(ev backendEvent) {
	select {
	case c.backendEvents <- ev:
		return
	default:
	}
	if ev.kind == evState && ev.state.Phase == backend.PhaseEnded {
		go func() { c.backendEvents <- ev }()
		return
	}
	c.log.Warn().Int("kind", int(ev.kind)).Msg("backend event dropped")
}

func (c *Coordinator) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Drop if slow consumer.
		c.log.Warn().Str("event", ev.Kind.String()).Msg("host event dropped")
	}
}

func (c *Coordinator) reqCtx() (context.Context, context.CancelFunc) {
	parent := c.runCtx
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, c.reqTimeout)
}

// ---- command handling ----

func (c *Coordinator) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdStart:
		return c.handleStart(cmd.intent)
	case cmdBack:
		return c.handleBack()
	case cmdSwitchTo:
		return c.handleSwitchTo(cmd.to)
	case cmdEnd:
		return c.handleEnd(cmd.presentSurvey)
	case cmdMinimize:
		if c.window.Minimize() {
			c.emit(Event{Kind: EventMinimized})
		}
		return nil
	case cmdMaximize:
		if c.window.Maximize() {
			c.window.ClearUnread()
			c.emit(Event{Kind: EventMaximized})
		}
		return nil
	case cmdStopScreenShare:
		return c.handleStopScreenShare()
	default:
		return ErrBadTransition
	}
}

func (c *Coordinator) handleStart(intent Intent) error {
	if !c.mode.IsNone() {
		return ErrAlreadyStarted
	}
	if intent.Current() == KindNone {
		return ErrInvalidKind
	}

	c.intent = intent
	c.surfaceID = uuid.NewString()
	if err := c.enterMode(intent.Current(), intent.MessagingScreen()); err != nil {
		return err
	}

	if c.journal != nil {
		ctx, cancel := c.reqCtx()
		//nolint:errcheck // Best effort record.
		c.journal.RecordStart(ctx, c.surfaceID, intent.Current().String(), time.Now())
		cancel()
	}

	if c.window.Maximize() {
		c.emit(Event{Kind: EventMaximized})
	}
	c.emit(Event{Kind: EventStarted, EngagementKind: intent.Current(), Join: c.currentJoin()})
	c.log.Info().Str("kind", intent.Current().String()).Msg("engagement started")
	return nil
}

// enterMode builds the session mode for kind and begins enqueueing.
// A call session always gets a paired chat thread beneath the call screen.
func (c *Coordinator) enterMode(kind Kind, messagingScreen string) error {
	switch kind {
	case KindChat:
		c.setMode(chatMode(&ChatScreen{ID: uuid.NewString()}))
		c.enqueue(backend.MediaText)
	case KindAudioCall, KindVideoCall:
		callKind := CallAudio
		mediaKind := backend.MediaAudio
		if kind == KindVideoCall {
			callKind = CallVideoTwoWay
			mediaKind = backend.MediaVideo
		}
		session := &CallSession{
			ScreenID:     uuid.NewString(),
			Chat:         &ChatScreen{ID: uuid.NewString(), BubbleVisible: true},
			UpgradedFrom: UpgradedFromNone,
			Call:         newCall(uuid.NewString(), callKind),
		}
		session.unobserve = session.Call.observeKind(c.onCallKindChanged)
		c.setMode(callMode(session))
		c.provisionMedia(session)
		c.enqueue(mediaKind)
	case KindMessaging:
		c.setMode(secureMode(&SecureScreen{ID: uuid.NewString(), InitialScreen: messagingScreen}))
	default:
		return ErrInvalidKind
	}
	c.setCurrentKind(kind, false)
	return nil
}

// setMode replaces the session mode, tearing down the outgoing mode's
// observers first so no event reaches a decommissioned session.
func (c *Coordinator) setMode(m Mode) {
	c.mode.teardownObservers()
	c.mode = m
}

func (c *Coordinator) onCallKindChanged(k CallKind) {
	c.setCurrentKind(k.engagementKind(), true)
}

func (c *Coordinator) setCurrentKind(kind Kind, announce bool) {
	if c.intent.current == kind {
		return
	}
	c.intent.current = kind
	if announce {
		c.emit(Event{Kind: EventKindChanged, EngagementKind: kind, Join: c.currentJoin()})
	}
}

// currentJoin returns the live call's media credentials, when provisioned.
func (c *Coordinator) currentJoin() *media.JoinInfo {
	if session, ok := c.mode.CallSession(); ok {
		return session.Call.JoinInfo()
	}
	return nil
}

func (c *Coordinator) handleBack() error {
	switch {
	case c.mode.IsNone():
		return ErrNotStarted

	case c.mode.kind == modeChat:
		if c.ticket != nil || c.enqueueing {
			// A ticket is outstanding: shrink instead of abandoning it.
			if c.window.Minimize() {
				c.emit(Event{Kind: EventMinimized})
			}
			return nil
		}
		return c.finish(c.currentBackendState(), c.showSurvey)

	case c.mode.kind == modeCall:
		session := c.mode.call
		if session.UpgradedFrom == UpgradedFromChat {
			c.releaseMedia(session)
			c.setMode(chatMode(session.Chat))
			c.setCurrentKind(KindChat, true)
			return nil
		}
		// The call was started directly: back pops to the call's own
		// screen, a UI-level move with no state change.
		return nil

	case c.mode.kind == modeSecure:
		if c.intent.Launch() == LaunchIndirect {
			if initial := c.intent.Initial(); initial != KindNone && initial != KindMessaging {
				return c.replaceWith(initial)
			}
		}
		if c.window.Minimize() {
			c.emit(Event{Kind: EventMinimized})
		}
		return nil
	}
	return ErrBadTransition
}

func (c *Coordinator) handleSwitchTo(kind Kind) error {
	if c.mode.kind != modeSecure {
		return ErrBadTransition
	}
	if kind == KindNone || kind == KindMessaging {
		return ErrInvalidKind
	}

	pending := c.mediator.Request(confirm.KindLeaveQueue, confirm.Payload{
		Title: "Switch engagement",
		Text:  "Leave secure messaging and start a live engagement?",
	})
	if c.awaitDecision(pending) != confirm.Accepted {
		return nil
	}
	return c.replaceWith(kind)
}

// replaceWith applies start(direct(kind)) semantics over the current mode,
// replacing any outstanding queue ticket rather than duplicating it.
func (c *Coordinator) replaceWith(kind Kind) error {
	c.cancelTicket()

	c.intent = Direct(kind)
	if err := c.enterMode(kind, ""); err != nil {
		return err
	}
	c.emit(Event{Kind: EventKindChanged, EngagementKind: kind, Join: c.currentJoin()})
	c.log.Info().Str("kind", kind.String()).Msg("engagement switched")
	return nil
}

// cancelTicket replaces/abandons the outstanding queue ticket, surfacing
// failures through the generic error path.
func (c *Coordinator) cancelTicket() {
	if c.ticket == nil {
		return
	}
	ticket := *c.ticket
	c.ticket = nil

	ctx, cancel := c.reqCtx()
	defer cancel()
	if _, err := c.backend.CancelQueueTicket(ctx, ticket); err != nil {
		c.log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("cancel queue ticket")
		c.presentError(err)
	}
}

func (c *Coordinator) handleEnd(presentSurvey bool) error {
	if c.mode.IsNone() {
		return ErrNotStarted
	}

	state := c.currentBackendState()
	switch state.Phase {
	case backend.PhaseEngaged:
		pending := c.mediator.Request(confirm.KindEndEngagement, confirm.Payload{
			Title: "End engagement",
			Text:  "Are you sure you want to end this engagement?",
		})
		if c.awaitDecision(pending) != confirm.Accepted {
			return nil
		}
	case backend.PhaseEnqueued, backend.PhaseEnqueueing:
		pending := c.mediator.Request(confirm.KindLeaveQueue, confirm.Payload{
			Title: "Leave queue",
			Text:  "You will lose your place in the queue.",
		})
		if c.awaitDecision(pending) != confirm.Accepted {
			return nil
		}
		c.cancelTicket()
	}

	// Re-check: a backend end may have preempted the prompt.
	if c.mode.IsNone() {
		return nil
	}
	return c.finish(state, presentSurvey)
}

func (c *Coordinator) handleStopScreenShare() error {
	if c.share != backend.ScreenShareActive {
		return ErrBadTransition
	}
	pending := c.mediator.Request(confirm.KindEndScreenShare, confirm.Payload{
		Title: "Stop screen sharing",
		Text:  "Stop sharing your screen with the operator?",
	})
	if c.awaitDecision(pending) != confirm.Accepted {
		return nil
	}

	ctx, cancel := c.reqCtx()
	defer cancel()
	if err := c.backend.StopScreenShare(ctx); err != nil {
		c.log.Warn().Err(err).Msg("stop screen share")
		c.presentError(err)
		return nil
	}
	c.share = backend.ScreenShareInactive
	return nil
}

// finish tears the session down. Open prompts resolve declining and observer
// unregistration happens before the survey fetch, so no dialog outlives the
// session and no callback reaches a half-torn-down one. Exactly one terminal
// event is emitted: ended for an engagement that genuinely ran, closed for a
// pre-engagement screen.
func (c *Coordinator) finish(state backend.EngagementState, presentSurvey bool) error {
	c.mediator.ForceResolveAll(confirm.Declined)
	c.mode.teardownObservers()

	genuine := state.Phase == backend.PhaseEngaged ||
		(state.Phase == backend.PhaseEnded && state.EngagementID != "")
	engagementID := state.EngagementID
	if engagementID == "" {
		engagementID = c.lastState.EngagementID
	}

	if genuine && engagementID != "" && survey.Decide(state.ShowSurvey, presentSurvey) {
		ctx, cancel := c.reqCtx()
		c.surveys.Resolve(ctx, engagementID)
		cancel()
	}

	if session, ok := c.mode.CallSession(); ok {
		c.releaseMedia(session)
	}
	c.mode = noneMode()
	c.ticket = nil
	c.enqueueing = false
	c.share = backend.ScreenShareInactive
	c.intent = Direct(KindNone)
	c.window.Minimize()

	outcome := journal.OutcomeClosed
	terminal := EventClosed
	if genuine {
		outcome = journal.OutcomeEnded
		terminal = EventEnded
	}

	if c.journal != nil && c.surfaceID != "" {
		ctx, cancel := c.reqCtx()
		//nolint:errcheck // Best effort record.
		c.journal.RecordEnd(ctx, c.surfaceID, outcome, state.Reason, time.Now())
		cancel()
	}
	c.surfaceID = ""

	c.emit(Event{Kind: terminal})
	c.log.Info().Str("terminal", terminal.String()).Str("reason", state.Reason).Msg("engagement finished")
	return nil
}

// currentBackendState asks the backend for truth at call time. On failure
// the last pushed state is used.
func (c *Coordinator) currentBackendState() backend.EngagementState {
	ctx, cancel := c.reqCtx()
	defer cancel()
	state, err := c.backend.CurrentEngagementState(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("query engagement state")
		return c.lastState
	}
	c.lastState = state
	return state
}

func (c *Coordinator) presentError(err error) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	c.surveys.PresentError(ctx, err)
}

// ---- backend event handling ----

func (c *Coordinator) handleBackendEvent(ev backendEvent) {
	switch ev.kind {
	case evState:
		c.handleStateChange(ev.state)
	case evOffer:
		c.handleUpgradeOffer(ev.offer, ev.answer)
	case evShare:
		c.handleScreenShare(ev.share)
	case evUnread:
		c.window.SetUnreadCount(ev.unread)
	case evEnqueueResult:
		c.applyEnqueueResult(ev)
	}
}

func (c *Coordinator) handleStateChange(state backend.EngagementState) {
	c.lastState = state
	switch state.Phase {
	case backend.PhaseEnded:
		if c.mode.IsNone() {
			return
		}
		c.log.Info().Str("reason", state.Reason).Msg("backend ended engagement")
		//nolint:errcheck // Teardown never fails.
		c.finish(state, c.showSurvey)
	case backend.PhaseEngaged:
		// The operator picked up: the queue ticket is consumed.
		c.enqueueing = false
		c.ticket = nil
		c.log.Info().Str("engagement_id", state.EngagementID).Msg("engagement engaged")
	}
}

func (c *Coordinator) handleUpgradeOffer(offer backend.MediaUpgradeOffer, answer *upgrade.Answer) {
	if c.mode.kind != modeChat && c.mode.kind != modeCall {
		// No live mode to upgrade.
		answer.Decline()
		return
	}

	if !c.negotiator.Negotiate(offer, answer) {
		return
	}
	if c.mode.kind != modeChat && c.mode.kind != modeCall {
		// The session tore down while the dialog was open.
		return
	}
	// The dialog is dismissed and the answer sent before any transition.
	c.applyUpgrade(offer)
}

// applyUpgrade performs the state transition for an accepted offer.
func (c *Coordinator) applyUpgrade(offer backend.MediaUpgradeOffer) {
	callKind := callKindForOffer(offer)

	switch c.mode.kind {
	case modeChat:
		// Chat upgrades to a call; the chat screen stays reachable by
		// back-navigation.
		session := &CallSession{
			ScreenID:     uuid.NewString(),
			Chat:         c.mode.chat,
			UpgradedFrom: UpgradedFromChat,
			Call:         newCall(uuid.NewString(), callKind),
		}
		session.unobserve = session.Call.observeKind(c.onCallKindChanged)
		c.setMode(callMode(session))
		c.provisionMedia(session)
		c.setCurrentKind(callKind.engagementKind(), true)

	case modeCall:
		// An existing call renegotiates in place: no new screen-stack
		// entry, and back no longer returns to chat.
		session := c.mode.call
		session.UpgradedFrom = UpgradedFromNone
		session.Call.setKind(callKind)
	}

	if c.journal != nil && c.surfaceID != "" {
		ctx, cancel := c.reqCtx()
		//nolint:errcheck // Best effort record.
		c.journal.RecordUpgrade(ctx, c.surfaceID, c.intent.Current().String())
		cancel()
	}
	c.log.Info().
		Str("call_kind", callKind.String()).
		Str("offer", upgrade.Describe(offer)).
		Msg("media upgrade applied")
}

func (c *Coordinator) handleScreenShare(state backend.ScreenShareState) {
	switch state {
	case backend.ScreenShareRequested:
		if c.mode.IsNone() {
			c.respondScreenShare(false)
			return
		}
		pending := c.mediator.Request(confirm.KindStartScreenShare, confirm.Payload{
			Title: "Screen sharing",
			Text:  "The operator would like to see your screen.",
		})
		accepted := c.awaitDecision(pending) == confirm.Accepted
		if c.mode.IsNone() {
			// The session tore down while the dialog was open.
			accepted = false
		}
		c.respondScreenShare(accepted)
		if accepted {
			c.share = backend.ScreenShareActive
		}
	default:
		c.share = state
	}
}

func (c *Coordinator) respondScreenShare(accepted bool) {
	ctx, cancel := c.reqCtx()
	defer cancel()
	if err := c.backend.RespondToScreenShare(ctx, accepted); err != nil {
		c.log.Warn().Err(err).Msg("respond to screen share")
	}
}

// enqueue puts the backend into its enqueueing phase for the media kind.
// Screens are shown optimistically; the enqueueing sub-state clears when
// the acknowledgment (or error) arrives.
func (c *Coordinator) enqueue(kind backend.MediaKind) {
	c.enqueueing = true
	parent := c.runCtx
	if parent == nil {
		parent = context.Background()
	}
	go func() {
		ctx, cancel := context.WithTimeout(parent, c.reqTimeout)
		defer cancel()
		ticket, err := c.backend.EnqueueForEngagement(ctx, kind)
		c.post(backendEvent{kind: evEnqueueResult, ticket: ticket, err: err})
	}()
}

func (c *Coordinator) applyEnqueueResult(ev backendEvent) {
	c.enqueueing = false
	if c.mode.IsNone() {
		// The session ended while the ack was in flight; release the slot.
		if ev.err == nil {
			ticket := ev.ticket
			ctx, cancel := c.reqCtx()
			//nolint:errcheck // Best effort cleanup.
			c.backend.CancelQueueTicket(ctx, ticket)
			cancel()
		}
		return
	}
	if c.lastState.Phase == backend.PhaseEngaged {
		// The operator picked up before the ack landed.
		return
	}
	if ev.err != nil {
		c.log.Warn().Err(ev.err).Msg("enqueue failed")
		c.presentError(ev.err)
		//nolint:errcheck // Teardown never fails.
		c.finish(c.lastState, false)
		return
	}
	ticket := ev.ticket
	c.ticket = &ticket
	c.log.Debug().Str("ticket_id", ticket.ID).Msg("queue ticket issued")
}

// provisionMedia attaches dev-mode join credentials when an engine is
// configured. Production backends deliver credentials with the engagement.
func (c *Coordinator) provisionMedia(session *CallSession) {
	if c.engine == nil {
		return
	}
	ctx, cancel := c.reqCtx()
	defer cancel()

	room, err := c.engine.ProvisionRoom(ctx, session.Call.ID())
	if err != nil {
		c.log.Warn().Err(err).Msg("provision media room")
		return
	}
	session.RoomName = room

	join, err := c.engine.JoinCredentials(ctx, room, c.visitorID)
	if err != nil {
		c.log.Warn().Err(err).Msg("media join credentials")
		return
	}
	session.Call.join = join
}

func (c *Coordinator) releaseMedia(session *CallSession) {
	if c.engine == nil || session.RoomName == "" {
		return
	}
	ctx, cancel := c.reqCtx()
	defer cancel()
	//nolint:errcheck // Best effort cleanup.
	c.engine.CloseRoom(ctx, session.RoomName)
	session.RoomName = ""
}

// ---- decision waiting ----

// awaitDecision blocks the current transition on a prompt while keeping the
// backend event channel drained. A backend-driven end preempts the prompt:
// it resolves declining, the dialog is dismissed, and the end is processed
// after the current transition unwinds.
func (c *Coordinator) awaitDecision(pending *confirm.Pending) confirm.Outcome {
	done := c.runCtx
	if done == nil {
		done = context.Background()
	}
	for {
		select {
		case <-done.Done():
			c.mediator.ForceResolveAll(confirm.Declined)
			return confirm.Declined
		case outcome := <-pending.Decision():
			return outcome
		case ev := <-c.backendEvents:
			if ev.kind == evState && ev.state.Phase == backend.PhaseEnded {
				c.mediator.ForceResolveAll(confirm.Declined)
				c.deferred = append(c.deferred, ev)
				return confirm.Declined
			}
			switch ev.kind {
			case evUnread:
				c.window.SetUnreadCount(ev.unread)
			case evEnqueueResult:
				c.applyEnqueueResult(ev)
			case evState:
				c.lastState = ev.state
				if ev.state.Phase == backend.PhaseEngaged {
					c.enqueueing = false
					c.ticket = nil
				}
			default:
				// Offers and share changes wait their turn.
				c.deferred = append(c.deferred, ev)
			}
		}
	}
}

func (c *Coordinator) drainDeferred() {
	for len(c.deferred) > 0 {
		ev := c.deferred[0]
		c.deferred = c.deferred[1:]
		c.handleBackendEvent(ev)
	}
}
