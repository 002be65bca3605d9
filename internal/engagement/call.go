package engagement

import (
	"github.com/engageworks/engage-go/internal/backend"
	"github.com/engageworks/engage-go/internal/media"
)

// CallKind is the negotiated media kind of an active call.
type CallKind int

const (
	CallAudio CallKind = iota
	CallVideoOneWay
	CallVideoTwoWay
)

// String returns the wire-ish name of the call kind.
func (k CallKind) String() string {
	switch k {
	case CallAudio:
		return "audio"
	case CallVideoOneWay:
		return "video/one_way"
	case CallVideoTwoWay:
		return "video/two_way"
	default:
		return "unknown"
	}
}

// engagementKind maps a call kind to the session-level engagement kind.
func (k CallKind) engagementKind() Kind {
	if k == CallAudio {
		return KindAudioCall
	}
	return KindVideoCall
}

// callKindForOffer maps an accepted upgrade offer to a call kind. Callers
// must have classified the offer first; unknown combinations fall back to
// audio.
func callKindForOffer(offer backend.MediaUpgradeOffer) CallKind {
	switch offer.MediaKind {
	case backend.MediaVideo:
		if offer.Direction == backend.DirectionOneWay {
			return CallVideoOneWay
		}
		return CallVideoTwoWay
	default:
		return CallAudio
	}
}

// Call represents a single active audio/video call. Its kind is observable
// so the intent can follow renegotiations. A Call is owned exclusively by
// the call session mode and is discarded when the mode transitions away.
type Call struct {
	id   string
	kind CallKind
	join *media.JoinInfo

	observers map[int]func(CallKind)
	nextObs   int
}

func newCall(id string, kind CallKind) *Call {
	return &Call{
		id:        id,
		kind:      kind,
		observers: make(map[int]func(CallKind)),
	}
}

// ID returns the call identifier.
func (c *Call) ID() string { return c.id }

// Kind returns the current negotiated kind.
func (c *Call) Kind() CallKind { return c.kind }

// JoinInfo returns media credentials, if any were provisioned.
func (c *Call) JoinInfo() *media.JoinInfo { return c.join }

// setKind renegotiates the call in place and notifies observers.
func (c *Call) setKind(kind CallKind) {
	if c.kind == kind {
		return
	}
	c.kind = kind
	for _, fn := range c.observers {
		fn(kind)
	}
}

// observeKind registers an observer and returns its unregister func.
// Ownership of the observation lives with the session mode; it must be
// unregistered before the mode is replaced.
func (c *Call) observeKind(fn func(CallKind)) func() {
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() { delete(c.observers, id) }
}
