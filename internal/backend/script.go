package backend

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Scripted is a deterministic in-process Client. A driver (engagectl demo or
// a test) pushes backend events by hand; requests resolve immediately from
// local state. All callbacks run on the pushing goroutine.
type Scripted struct {
	mu         sync.Mutex
	state      EngagementState
	share      ScreenShareState
	tickets    map[string]QueueTicket
	survey     *Survey
	surveyErr  error
	submitted  [][]SurveyAnswer
	answered   map[string]bool
	shareVotes []bool
	stops      int

	stateSubs  []func(EngagementState)
	shareSubs  []func(ScreenShareState)
	offerSubs  []func(MediaUpgradeOffer, AnswerFunc)
	unreadSubs []func(int)
}

// NewScripted builds a scripted backend in the "none" phase.
func NewScripted() *Scripted {
	return &Scripted{
		state:    EngagementState{Phase: PhaseNone},
		share:    ScreenShareInactive,
		tickets:  make(map[string]QueueTicket),
		answered: make(map[string]bool),
	}
}

// SetSurvey configures the survey returned by FetchEngagementEndSurvey.
func (s *Scripted) SetSurvey(survey *Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.survey = survey
}

// SetSurveyError makes survey fetches fail.
func (s *Scripted) SetSurveyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveyErr = err
}

// PushEngagementState publishes a backend state change to subscribers.
func (s *Scripted) PushEngagementState(state EngagementState) {
	s.mu.Lock()
	s.state = state
	subs := append(([]func(EngagementState))(nil), s.stateSubs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// PushUpgradeOffer publishes a media-upgrade offer. The recorded answer is
// readable via OfferAnswer.
func (s *Scripted) PushUpgradeOffer(offer MediaUpgradeOffer) {
	s.mu.Lock()
	subs := append(([]func(MediaUpgradeOffer, AnswerFunc))(nil), s.offerSubs...)
	s.mu.Unlock()

	answer := func(accepted bool) {
		s.mu.Lock()
		s.answered[offer.ID] = accepted
		s.mu.Unlock()
	}
	for _, fn := range subs {
		fn(offer, answer)
	}
}

// PushScreenShareState publishes a screen-share state change.
func (s *Scripted) PushScreenShareState(state ScreenShareState) {
	s.mu.Lock()
	s.share = state
	subs := append(([]func(ScreenShareState))(nil), s.shareSubs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// PushUnreadCount publishes an unread badge update.
func (s *Scripted) PushUnreadCount(n int) {
	s.mu.Lock()
	subs := append(([]func(int))(nil), s.unreadSubs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

// OfferAnswer reports whether an offer was answered and with what.
func (s *Scripted) OfferAnswer(offerID string) (accepted, answered bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted, answered = s.answered[offerID]
	return accepted, answered
}

// SubmittedAnswers returns every submitted answer set.
func (s *Scripted) SubmittedAnswers() [][]SurveyAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]SurveyAnswer(nil), s.submitted...)
}

// ShareVotes returns recorded screen-share responses.
func (s *Scripted) ShareVotes() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.shareVotes...)
}

// Stops returns how many times an active screen share was stopped.
func (s *Scripted) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// OutstandingTickets returns the tickets not yet cancelled.
func (s *Scripted) OutstandingTickets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// EnqueueForEngagement implements Client.
func (s *Scripted) EnqueueForEngagement(_ context.Context, kind MediaKind) (QueueTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket := QueueTicket{ID: uuid.NewString(), MediaKind: kind}
	s.tickets[ticket.ID] = ticket
	if s.state.Phase == PhaseNone || s.state.Phase == PhaseEnqueueing {
		s.state.Phase = PhaseEnqueued
	}
	return ticket, nil
}

// CancelQueueTicket implements Client.
func (s *Scripted) CancelQueueTicket(_ context.Context, ticket QueueTicket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		return false, nil
	}
	delete(s.tickets, ticket.ID)
	return true, nil
}

// CurrentEngagementState implements Client.
func (s *Scripted) CurrentEngagementState(_ context.Context) (EngagementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// SubscribeEngagementState implements Client.
func (s *Scripted) SubscribeEngagementState(fn func(EngagementState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateSubs = append(s.stateSubs, fn)
}

// SubscribeScreenShareState implements Client.
func (s *Scripted) SubscribeScreenShareState(fn func(ScreenShareState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareSubs = append(s.shareSubs, fn)
}

// SubscribeMediaUpgradeOffers implements Client.
func (s *Scripted) SubscribeMediaUpgradeOffers(fn func(MediaUpgradeOffer, AnswerFunc)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerSubs = append(s.offerSubs, fn)
}

// SubscribeUnreadCount implements Client.
func (s *Scripted) SubscribeUnreadCount(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadSubs = append(s.unreadSubs, fn)
}

// RespondToScreenShare implements Client.
func (s *Scripted) RespondToScreenShare(_ context.Context, accepted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shareVotes = append(s.shareVotes, accepted)
	if accepted {
		s.share = ScreenShareActive
	} else {
		s.share = ScreenShareInactive
	}
	return nil
}

// StopScreenShare implements Client.
func (s *Scripted) StopScreenShare(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.share = ScreenShareInactive
	return nil
}

// FetchEngagementEndSurvey implements Client.
func (s *Scripted) FetchEngagementEndSurvey(_ context.Context, _ string) (*Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surveyErr != nil {
		return nil, s.surveyErr
	}
	return s.survey, nil
}

// SubmitSurveyAnswers implements Client.
func (s *Scripted) SubmitSurveyAnswers(_ context.Context, answers []SurveyAnswer, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, append([]SurveyAnswer(nil), answers...))
	return nil
}

// Close implements Client.
func (s *Scripted) Close() error { return nil }

var _ Client = (*Scripted)(nil)
