package backend

import "context"

// MediaKind is the media type an engagement is queued for.
type MediaKind string

const (
	MediaText      MediaKind = "text"
	MediaAudio     MediaKind = "audio"
	MediaVideo     MediaKind = "video"
	MediaMessaging MediaKind = "messaging"
)

// Direction is the video direction of a media-upgrade offer.
type Direction string

const (
	DirectionNone   Direction = ""
	DirectionOneWay Direction = "one_way"
	DirectionTwoWay Direction = "two_way"
)

// Phase is the backend's view of the engagement lifecycle.
type Phase string

const (
	PhaseNone       Phase = "none"
	PhaseEnqueueing Phase = "enqueueing"
	PhaseEnqueued   Phase = "enqueued"
	PhaseEngaged    Phase = "engaged"
	PhaseEnded      Phase = "ended"
)

// EngagementState describes the engagement as the backend reports it.
type EngagementState struct {
	Phase        Phase
	EngagementID string
	Reason       string // set when Phase is PhaseEnded
	ShowSurvey   bool   // the engagement's configured post-end action
}

// QueueTicket is the visitor's place in line for an operator.
type QueueTicket struct {
	ID        string
	MediaKind MediaKind
}

// MediaUpgradeOffer is an immutable proposal from the operator side to move
// the session to a richer media kind.
type MediaUpgradeOffer struct {
	ID        string
	MediaKind MediaKind
	Direction Direction
}

// AnswerFunc resolves a media-upgrade offer. The coordinator guarantees it is
// called exactly once per offer.
type AnswerFunc func(accepted bool)

// ScreenShareState is the operator-driven screen-share lifecycle.
type ScreenShareState string

const (
	ScreenShareInactive  ScreenShareState = "inactive"
	ScreenShareRequested ScreenShareState = "requested"
	ScreenShareActive    ScreenShareState = "active"
)

// Survey is a post-engagement survey definition.
type Survey struct {
	ID        string
	Title     string
	Questions []SurveyQuestion
}

// SurveyQuestionKind is the answer type of a survey question.
type SurveyQuestionKind string

const (
	QuestionScale   SurveyQuestionKind = "scale"
	QuestionBoolean SurveyQuestionKind = "boolean"
	QuestionText    SurveyQuestionKind = "text"
)

// SurveyQuestion is a single survey question.
type SurveyQuestion struct {
	ID       string
	Text     string
	Kind     SurveyQuestionKind
	Required bool
}

// SurveyAnswer is the visitor's answer to one question.
type SurveyAnswer struct {
	QuestionID string
	Value      string
}

// Client abstracts the backend session service the coordinator talks to.
// Subscription callbacks may be invoked from the client's own goroutines;
// the coordinator marshals them onto its control loop.
type Client interface {
	// EnqueueForEngagement asks for a place in the operator queue.
	EnqueueForEngagement(ctx context.Context, kind MediaKind) (QueueTicket, error)

	// CancelQueueTicket cancels an outstanding ticket. Returns true if the
	// backend confirmed the cancellation.
	CancelQueueTicket(ctx context.Context, ticket QueueTicket) (bool, error)

	// CurrentEngagementState reports the backend's view of the engagement.
	CurrentEngagementState(ctx context.Context) (EngagementState, error)

	// SubscribeEngagementState registers a handler for state pushes.
	SubscribeEngagementState(fn func(EngagementState))

	// SubscribeScreenShareState registers a handler for screen-share pushes.
	SubscribeScreenShareState(fn func(ScreenShareState))

	// SubscribeMediaUpgradeOffers registers a handler for upgrade offers.
	// Each offer's answer must be invoked exactly once.
	SubscribeMediaUpgradeOffers(fn func(MediaUpgradeOffer, AnswerFunc))

	// SubscribeUnreadCount registers a handler for unread badge pushes.
	SubscribeUnreadCount(fn func(int))

	// RespondToScreenShare resolves an operator screen-share request.
	RespondToScreenShare(ctx context.Context, accepted bool) error

	// StopScreenShare ends an active screen share.
	StopScreenShare(ctx context.Context) error

	// FetchEngagementEndSurvey returns the engagement's survey, or nil if
	// none is configured.
	FetchEngagementEndSurvey(ctx context.Context, engagementID string) (*Survey, error)

	// SubmitSurveyAnswers submits the visitor's answers.
	SubmitSurveyAnswers(ctx context.Context, answers []SurveyAnswer, surveyID, engagementID string) error

	// Close releases the underlying transport.
	Close() error
}
