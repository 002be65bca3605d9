package engagement

// UpgradedFrom records whether a call mode exists because a chat session was
// upgraded, which changes back-navigation behavior.
type UpgradedFrom int

const (
	UpgradedFromNone UpgradedFrom = iota
	UpgradedFromChat
)

// ChatScreen is the handle of a chat surface owned by the session.
type ChatScreen struct {
	ID string
	// BubbleVisible marks the chat screen that sits beneath a call with
	// its bubble affordance showing.
	BubbleVisible bool
}

// SecureScreen is the handle of a secure-messaging surface.
type SecureScreen struct {
	ID string
	// InitialScreen names the messaging screen opened first.
	InitialScreen string
}

// CallSession is the payload of the call mode variant.
type CallSession struct {
	ScreenID     string
	Chat         *ChatScreen // paired chat thread, always present
	UpgradedFrom UpgradedFrom
	Call         *Call
	RoomName     string // media room, when provisioned

	// unobserve tears down the call-kind observation owned by this mode.
	unobserve func()
}

type modeKind int

const (
	modeNone modeKind = iota
	modeChat
	modeCall
	modeSecure
)

// Mode is the live, mutually exclusive state of a session: exactly one of
// none, chat, call or secure messaging is active at any time.
type Mode struct {
	kind   modeKind
	chat   *ChatScreen
	call   *CallSession
	secure *SecureScreen
}

func noneMode() Mode { return Mode{kind: modeNone} }

func chatMode(screen *ChatScreen) Mode { return Mode{kind: modeChat, chat: screen} }

func callMode(session *CallSession) Mode { return Mode{kind: modeCall, call: session} }

func secureMode(screen *SecureScreen) Mode { return Mode{kind: modeSecure, secure: screen} }

// IsNone reports whether no engagement is active.
func (m Mode) IsNone() bool { return m.kind == modeNone }

// Chat returns the chat screen when the chat mode is active.
func (m Mode) Chat() (*ChatScreen, bool) { return m.chat, m.kind == modeChat }

// CallSession returns the call payload when the call mode is active.
func (m Mode) CallSession() (*CallSession, bool) { return m.call, m.kind == modeCall }

// Secure returns the secure screen when the messaging mode is active.
func (m Mode) Secure() (*SecureScreen, bool) { return m.secure, m.kind == modeSecure }

// Kind returns the engagement kind this mode presents.
func (m Mode) Kind() Kind {
	switch m.kind {
	case modeChat:
		return KindChat
	case modeCall:
		return m.call.Call.Kind().engagementKind()
	case modeSecure:
		return KindMessaging
	default:
		return KindNone
	}
}

// teardownObservers unregisters every observation owned by this mode. It
// must run before the mode is replaced, so no event is delivered to a
// decommissioned session.
func (m Mode) teardownObservers() {
	if m.kind == modeCall && m.call.unobserve != nil {
		m.call.unobserve()
		m.call.unobserve = nil
	}
}
