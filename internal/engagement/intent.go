package engagement

// Kind is the media type of an engagement.
type Kind int

const (
	KindNone Kind = iota
	KindChat
	KindAudioCall
	KindVideoCall
	KindMessaging
)

// String returns the analytics name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindChat:
		return "chat"
	case KindAudioCall:
		return "audioCall"
	case KindVideoCall:
		return "videoCall"
	case KindMessaging:
		return "messaging"
	default:
		return "unknown"
	}
}

// LaunchMode says how the visitor asked the engagement to start.
type LaunchMode int

const (
	// LaunchDirect starts exactly the named kind.
	LaunchDirect LaunchMode = iota
	// LaunchIndirect starts the named kind but remembers the initial kind
	// the visitor actually wanted, so they can be routed back to it after
	// resolving a pending secure conversation.
	LaunchIndirect
)

// Intent describes what the visitor asked to start. The initial kind of an
// indirect launch never changes; the current kind follows the visitor's
// resolved intent, and every change publishes a kind-changed event.
type Intent struct {
	launch  LaunchMode
	initial Kind
	current Kind

	// messagingScreen names the secure-messaging screen to open first
	// when the current kind is KindMessaging.
	messagingScreen string
}

// Direct builds an intent that starts exactly the given kind.
func Direct(kind Kind) Intent {
	return Intent{launch: LaunchDirect, initial: kind, current: kind}
}

// Indirect builds an intent that starts kind but remembers initialKind.
func Indirect(kind, initialKind Kind) Intent {
	return Intent{launch: LaunchIndirect, initial: initialKind, current: kind}
}

// Messaging builds a direct secure-messaging intent opening initialScreen.
func Messaging(initialScreen string) Intent {
	return Intent{
		launch:          LaunchDirect,
		initial:         KindMessaging,
		current:         KindMessaging,
		messagingScreen: initialScreen,
	}
}

// Launch returns the launch mode.
func (i Intent) Launch() LaunchMode { return i.launch }

// Initial returns the launch's initial kind. Constant for the lifetime of
// an indirect launch.
func (i Intent) Initial() Kind { return i.initial }

// Current returns the visitor's currently resolved kind.
func (i Intent) Current() Kind { return i.current }

// MessagingScreen returns the initial secure-messaging screen name.
func (i Intent) MessagingScreen() string { return i.messagingScreen }
