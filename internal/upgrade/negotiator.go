// Package upgrade negotiates media-upgrade offers from the operator side.
package upgrade

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/confirm"
)

// Answer wraps an offer's answer callback so it can fire at most once.
// Consume it by calling Accept or Decline; later calls report false and do
// not reach the wire.
type Answer struct {
	once sync.Once
	fn   backend.AnswerFunc
}

// NewAnswer wraps a backend answer callback.
func NewAnswer(fn backend.AnswerFunc) *Answer {
	return &Answer{fn: fn}
}

// Accept answers the offer positively. Returns false if already answered.
func (a *Answer) Accept() bool { return a.resolve(true) }

// Decline answers the offer negatively. Returns false if already answered.
func (a *Answer) Decline() bool { return a.resolve(false) }

func (a *Answer) resolve(accepted bool) bool {
	done := false
	a.once.Do(func() {
		done = true
		if a.fn != nil {
			a.fn(accepted)
		}
	})
	return done
}

// Template names the alert rendered for a recognized offer combination.
type Template int

const (
	TemplateAudio Template = iota
	TemplateOneWayVideo
	TemplateTwoWayVideo
)

// Classify maps an offer to its alert template. ok is false for
// combinations this SDK version does not recognize.
func Classify(offer backend.MediaUpgradeOffer) (Template, bool) {
	switch offer.MediaKind {
	case backend.MediaAudio:
		return TemplateAudio, true
	case backend.MediaVideo:
		switch offer.Direction {
		case backend.DirectionOneWay:
			return TemplateOneWayVideo, true
		case backend.DirectionTwoWay:
			return TemplateTwoWayVideo, true
		}
	}
	return 0, false
}

func (t Template) payload() confirm.Payload {
	switch t {
	case TemplateAudio:
		return confirm.Payload{
			Title: "Audio call",
			Text:  "The operator would like to start an audio call.",
		}
	case TemplateOneWayVideo:
		return confirm.Payload{
			Title: "Video call",
			Text:  "The operator would like to share their video with you.",
		}
	case TemplateTwoWayVideo:
		return confirm.Payload{
			Title: "Video call",
			Text:  "The operator would like to start a two-way video call.",
		}
	default:
		return confirm.Payload{Title: "Upgrade"}
	}
}

// AwaitFunc blocks until the prompt resolves, letting the caller keep
// draining backend events (so a remote end can preempt the dialog).
type AwaitFunc func(*confirm.Pending) confirm.Outcome

// Negotiator resolves upgrade offers through the confirmation mediator.
type Negotiator struct {
	mediator *confirm.Mediator
	await    AwaitFunc
	log      *zerolog.Logger
}

// New builds a negotiator. await is supplied by the coordinator.
func New(mediator *confirm.Mediator, await AwaitFunc, logger *zerolog.Logger) *Negotiator {
	return &Negotiator{mediator: mediator, await: await, log: logger}
}

// Negotiate resolves one offer. The answer fires exactly once, before the
// caller performs any state transition, so the dialog is gone by the time a
// call screen appears. Unrecognized combinations are declined without
// prompting.
func (n *Negotiator) Negotiate(offer backend.MediaUpgradeOffer, answer *Answer) bool {
	template, ok := Classify(offer)
	if !ok {
		n.log.Warn().
			Str("media_kind", string(offer.MediaKind)).
			Str("direction", string(offer.Direction)).
			Msg("unrecognized upgrade offer, declining")
		answer.Decline()
		return false
	}

	pending := n.mediator.Request(confirm.KindMediaUpgrade, template.payload())
	outcome := n.await(pending)

	if outcome == confirm.Accepted {
		if !answer.Accept() {
			n.log.Error().Str("offer_id", offer.ID).Msg("offer already answered")
			return false
		}
		return true
	}
	answer.Decline()
	return false
}

// Describe renders a short human label for logs and journals.
func Describe(offer backend.MediaUpgradeOffer) string {
	if offer.MediaKind == backend.MediaVideo {
		return fmt.Sprintf("video/%s", offer.Direction)
	}
	return string(offer.MediaKind)
}
