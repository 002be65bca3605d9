package engagement

import "github.com/engageworks/engage-go/internal/media"

// EventKind is a notification the coordinator emits to the host.
type EventKind int

const (
	// EventStarted fires when an engagement surface opens.
	EventStarted EventKind = iota
	// EventKindChanged fires when the visitor's resolved kind changes.
	EventKindChanged
	// EventEnded fires when an engagement that genuinely ran ends.
	// Hosts count only this toward engagement analytics.
	EventEnded
	// EventClosed fires when the visitor closes a pre-engagement screen.
	EventClosed
	// EventMinimized fires when the surface is shrunk to its bubble.
	EventMinimized
	// EventMaximized fires when the surface is restored.
	EventMaximized
)

// String returns the event name as delivered to hosts.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventKindChanged:
		return "engagement_kind_changed"
	case EventEnded:
		return "ended"
	case EventClosed:
		return "closed"
	case EventMinimized:
		return "minimized"
	case EventMaximized:
		return "maximized"
	default:
		return "unknown"
	}
}

// Event is delivered on the host event stream.
type Event struct {
	Kind EventKind
	// EngagementKind carries the resolved kind for started and
	// kind-changed events.
	EngagementKind Kind
	// Join carries media join credentials on started and kind-changed
	// events for call modes, when an engine provisioned them.
	Join *media.JoinInfo
}
