// Package survey resolves the optional post-engagement survey flow.
package survey

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/engageworks/engage-go/internal/backend"
)

// Presenter renders the survey (and the generic error path) in the host UI.
type Presenter interface {
	// PresentSurvey shows the survey and blocks until the visitor submits
	// or cancels. submitted is false on cancellation.
	PresentSurvey(ctx context.Context, s *backend.Survey) (answers []backend.SurveyAnswer, submitted bool, err error)

	// PresentError shows a recoverable error and blocks until dismissed.
	PresentError(ctx context.Context, err error)
}

// Resolver decides whether a survey runs at session end and drives it.
// It never blocks teardown: every path, including fetch failure, terminates.
type Resolver struct {
	client    backend.Client
	presenter Presenter
	log       *zerolog.Logger
}

// New builds a resolver.
func New(client backend.Client, presenter Presenter, logger *zerolog.Logger) *Resolver {
	return &Resolver{client: client, presenter: presenter, log: logger}
}

// Decide computes the survey decision for one session end: the engagement's
// configured post-end action must be "show survey" AND the caller must have
// requested presentation.
func Decide(postEndShowsSurvey, presentRequested bool) bool {
	return postEndShowsSurvey && presentRequested
}

// PresentError surfaces a recoverable error through the host presenter.
func (r *Resolver) PresentError(ctx context.Context, err error) {
	r.presenter.PresentError(ctx, err)
}

// Resolve runs the survey flow for an ended engagement. The caller must
// have unregistered all mode observers before calling; the fetch here is
// the first asynchronous work after teardown begins.
func (r *Resolver) Resolve(ctx context.Context, engagementID string) {
	s, err := r.client.FetchEngagementEndSurvey(ctx, engagementID)
	if err != nil {
		r.log.Warn().Err(err).Str("engagement_id", engagementID).Msg("survey fetch failed")
		r.presenter.PresentError(ctx, err)
		return
	}
	if s == nil {
		r.log.Debug().Str("engagement_id", engagementID).Msg("no survey configured")
		return
	}

	answers, submitted, err := r.presenter.PresentSurvey(ctx, s)
	if err != nil {
		r.log.Warn().Err(err).Msg("survey presentation failed")
		return
	}
	if !submitted {
		r.log.Debug().Msg("survey cancelled")
		return
	}

	if err := r.client.SubmitSurveyAnswers(ctx, answers, s.ID, engagementID); err != nil {
		r.log.Warn().Err(err).Msg("survey submission failed")
		r.presenter.PresentError(ctx, err)
	}
}
