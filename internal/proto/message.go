package proto

import "encoding/json"

// Outbound is the envelope for messages the SDK sends to the backend.
type Outbound struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Inbound is the envelope for messages the backend sends to the SDK.
type Inbound struct {
	Type  string          `json:"type"`
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

const (
	ProtocolVersion = 1

	OutboundTypeHello   = "hello"
	OutboundTypeRequest = "request"

	InboundTypeReply = "reply"
	InboundTypeEvent = "event"

	MethodEnqueue          = "enqueue"
	MethodCancelTicket     = "cancel_ticket"
	MethodEngagementState  = "engagement_state"
	MethodAnswerUpgrade    = "answer_upgrade"
	MethodScreenShareReply = "screen_share_reply"
	MethodStopScreenShare  = "stop_screen_share"
	MethodFetchSurvey      = "fetch_survey"
	MethodSubmitSurvey     = "submit_survey"

	EventEngagementState = "engagement_state"
	EventUpgradeOffer    = "upgrade_offer"
	EventScreenShare     = "screen_share"
	EventUnreadCount     = "unread_count"
)

// HelloData introduces the visitor to the backend.
type HelloData struct {
	SiteID   string `json:"site_id"`
	Token    string `json:"token,omitempty"`
	Version  string `json:"version,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// EnqueueData asks for a place in the operator queue.
type EnqueueData struct {
	MediaKind string `json:"media_kind"`
}

// TicketData carries a queue ticket in replies and cancellations.
type TicketData struct {
	TicketID  string `json:"ticket_id"`
	MediaKind string `json:"media_kind,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// EngagementStateData describes the backend's view of the engagement.
type EngagementStateData struct {
	Phase        string `json:"phase"`
	EngagementID string `json:"engagement_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	ShowSurvey   bool   `json:"show_survey,omitempty"`
}

// UpgradeOfferData is a media-upgrade proposal pushed by the operator side.
type UpgradeOfferData struct {
	OfferID   string `json:"offer_id"`
	MediaKind string `json:"media_kind"`
	Direction string `json:"direction,omitempty"`
}

// AnswerUpgradeData resolves a pushed upgrade offer.
type AnswerUpgradeData struct {
	OfferID  string `json:"offer_id"`
	Accepted bool   `json:"accepted"`
}

// ScreenShareData reports a screen-share state change.
type ScreenShareData struct {
	State string `json:"state"`
}

// ScreenShareReplyData resolves an operator screen-share request.
type ScreenShareReplyData struct {
	Accepted bool `json:"accepted"`
}

// UnreadCountData updates the unread-message badge.
type UnreadCountData struct {
	Count int `json:"count"`
}

// SurveyRequestData identifies the engagement a survey belongs to.
type SurveyRequestData struct {
	EngagementID string `json:"engagement_id"`
}

// SurveyData is a post-engagement survey definition. A reply with a null
// survey means the engagement has none configured.
type SurveyData struct {
	Survey *Survey `json:"survey"`
}

// Survey is the wire form of a post-engagement survey.
type Survey struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Questions []SurveyQuestion `json:"questions"`
}

// SurveyQuestion is a single survey question.
type SurveyQuestion struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Kind     string `json:"kind"` // "scale", "boolean" or "text"
	Required bool   `json:"required,omitempty"`
}

// SubmitSurveyData carries the visitor's answers back.
type SubmitSurveyData struct {
	SurveyID     string         `json:"survey_id"`
	EngagementID string         `json:"engagement_id"`
	Answers      []SurveyAnswer `json:"answers"`
}

// SurveyAnswer is a single answered question.
type SurveyAnswer struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
