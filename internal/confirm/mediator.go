// Package confirm mediates yes/no prompts for disruptive engagement actions.
package confirm

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind tags what a prompt is asking the visitor to confirm.
type Kind int

const (
	// KindLeaveQueue asks whether to abandon an outstanding queue ticket.
	KindLeaveQueue Kind = iota
	// KindEndEngagement asks whether to end a live engagement.
	KindEndEngagement
	// KindStartScreenShare asks whether to accept an operator screen-share request.
	KindStartScreenShare
	// KindEndScreenShare asks whether to stop an active screen share.
	KindEndScreenShare
	// KindMediaUpgrade asks whether to accept a media-upgrade offer.
	KindMediaUpgrade
)

// String returns the wire-ish name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLeaveQueue:
		return "leave_queue"
	case KindEndEngagement:
		return "end_engagement"
	case KindStartScreenShare:
		return "start_screen_share"
	case KindEndScreenShare:
		return "end_screen_share"
	case KindMediaUpgrade:
		return "media_upgrade"
	default:
		return "unknown"
	}
}

// Outcome is one of a prompt's exactly two resolutions. There is no
// "cancel without answering".
type Outcome int

const (
	// Declined is the zero value so forced resolutions fail safe.
	Declined Outcome = iota
	Accepted
)

// Payload is what a presenter needs to render the prompt.
type Payload struct {
	Title string
	Text  string
}

// Pending is a single prompt awaiting its decision. It resolves exactly
// once; later resolutions are no-ops.
type Pending struct {
	id      string
	kind    Kind
	payload Payload

	once     sync.Once
	decision chan Outcome
	resolved func(*Pending)
}

// ID returns the prompt's identifier, used by presenters for dismissal.
func (p *Pending) ID() string { return p.id }

// Kind returns the prompt kind.
func (p *Pending) Kind() Kind { return p.kind }

// Payload returns the render payload.
func (p *Pending) Payload() Payload { return p.payload }

// Decision yields the visitor's choice once resolved.
func (p *Pending) Decision() <-chan Outcome { return p.decision }

// Resolve records the visitor's choice. Returns false if the prompt was
// already resolved.
func (p *Pending) Resolve(o Outcome) bool {
	done := false
	p.once.Do(func() {
		done = true
		p.decision <- o
		if p.resolved != nil {
			p.resolved(p)
		}
	})
	return done
}

// Presenter renders prompts in the host UI. Present is called for one
// prompt at a time; the presenter resolves it via Pending.Resolve. Dismiss
// is called when a prompt is resolved out from under the visitor (backend
// preemption) and the dialog must be torn down without input.
type Presenter interface {
	Present(p *Pending)
	Dismiss(promptID string)
}

// Mediator queues prompts and shows at most one at a time, in FIFO order.
type Mediator struct {
	presenter Presenter
	log       *zerolog.Logger

	mu      sync.Mutex
	visible *Pending
	queue   []*Pending
}

// New builds a mediator around the host's prompt presenter.
func New(presenter Presenter, logger *zerolog.Logger) *Mediator {
	return &Mediator{presenter: presenter, log: logger}
}

// Request creates a prompt and presents it as soon as no other prompt is
// visible. The returned Pending resolves exactly once.
func (m *Mediator) Request(kind Kind, payload Payload) *Pending {
	p := &Pending{
		id:       uuid.NewString(),
		kind:     kind,
		payload:  payload,
		decision: make(chan Outcome, 1),
		resolved: m.advance,
	}

	m.mu.Lock()
	if m.visible == nil {
		m.visible = p
		m.mu.Unlock()
		m.log.Debug().Str("prompt", kind.String()).Msg("presenting prompt")
		m.presenter.Present(p)
		return p
	}
	m.queue = append(m.queue, p)
	m.mu.Unlock()
	m.log.Debug().Str("prompt", kind.String()).Int("queued_behind", 1).Msg("queueing prompt")
	return p
}

// advance runs after a prompt resolves: drop it and present the next.
func (m *Mediator) advance(p *Pending) {
	m.mu.Lock()
	if m.visible == p {
		m.visible = nil
	} else {
		for i, queued := range m.queue {
			if queued == p {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				break
			}
		}
	}
	var next *Pending
	if m.visible == nil && len(m.queue) > 0 {
		next = m.queue[0]
		m.queue = m.queue[1:]
		m.visible = next
	}
	m.mu.Unlock()

	if next != nil {
		m.log.Debug().Str("prompt", next.kind.String()).Msg("presenting queued prompt")
		m.presenter.Present(next)
	}
}

// ForceResolveAll resolves every outstanding prompt with the given outcome,
// dismissing the visible dialog. Used when a backend-driven end preempts
// visitor input.
func (m *Mediator) ForceResolveAll(o Outcome) {
	m.mu.Lock()
	visible := m.visible
	queued := m.queue
	m.visible = nil
	m.queue = nil
	m.mu.Unlock()

	if visible != nil {
		m.presenter.Dismiss(visible.id)
		visible.Resolve(o)
	}
	for _, p := range queued {
		p.Resolve(o)
	}
}
