package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/pkg/fault"
	"github.com/rs/zerolog/log"
)

// SubmitResult is the response after an accepted answer. NextQuestionID is
// nil when the survey has ended.
type SubmitResult struct {
	Response       *flow.Response
	NextQuestionID *int64
}

// Handles every response for every survey.
type ResponseService interface {
	// Start a response. Only active surveys accept respondents.
	StartResponse(ctx context.Context, surveyID int64, respondentID string) (*flow.Response, error)
	// Validate and record an answer, then determine the next question.
	SubmitAnswer(ctx context.Context, responseID string, questionID int64, raw json.RawMessage) (*SubmitResult, error)
	// The question the respondent should see next, nil once the survey has ended.
	NextQuestion(ctx context.Context, responseID string) (*flow.Question, error)
	CompleteResponse(ctx context.Context, responseID string) (*flow.Response, error)
}

type responseServiceImpl struct {
	store        Store
	resolverOpts []flow.ResolverOption
	locks        *keyedMutex
}

// Instantiate the ResponseService. opts configure every resolver it builds.
func NewResponseService(store Store, opts ...flow.ResolverOption) ResponseService {
	return &responseServiceImpl{
		store:        store,
		resolverOpts: opts,
		locks:        newKeyedMutex(),
	}
}

func (s *responseServiceImpl) resolver(ctx context.Context, surveyID int64) (*flow.Resolver, error) {
	g, err := loadGraph(ctx, s.store, surveyID)
	if err != nil {
		return nil, err
	}
	return flow.NewResolver(g, s.resolverOpts...), nil
}

func (s *responseServiceImpl) requireActive(ctx context.Context, surveyID int64) error {
	survey, err := s.store.LoadSurvey(ctx, surveyID)
	if err != nil {
		return asFault(err, fmt.Sprintf("load survey %d", surveyID))
	}
	if !survey.Active {
		return fault.NewOperationError(fmt.Sprintf("survey %d", surveyID), fault.ErrSurveyInactive)
	}
	return nil
}

func (s *responseServiceImpl) loadResponse(ctx context.Context, responseID string) (*flow.Response, error) {
	resp, err := s.store.LoadResponse(ctx, responseID)
	if err != nil {
		return nil, asFault(err, fmt.Sprintf("load response %s", responseID))
	}
	return resp, nil
}

// logFailure records rejected operations. Consistency faults mean a validated
// survey produced an impossible state and are logged as errors.
func logFailure(err error, responseID string, msg string) {
	switch {
	case fault.IsConsistencyError(err):
		log.Error().Err(err).Str("responseID", responseID).Msg("response state contradicts survey structure")
	case flow.IsFlowError(err):
		log.Debug().Err(err).Str("responseID", responseID).Msg(msg)
	default:
		log.Error().Err(err).Str("responseID", responseID).Msg(msg)
	}
}

func (s *responseServiceImpl) StartResponse(ctx context.Context, surveyID int64, respondentID string) (*flow.Response, error) {
	if err := s.requireActive(ctx, surveyID); err != nil {
		return nil, err
	}

	r, err := s.resolver(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	resp, err := r.Start(respondentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateResponse(ctx, resp); err != nil {
		return nil, asFault(err, "create response")
	}

	log.Info().Int64("surveyID", surveyID).Str("responseID", resp.ID).Msg("response started")
	return resp, nil
}

func (s *responseServiceImpl) SubmitAnswer(ctx context.Context, responseID string, questionID int64, raw json.RawMessage) (*SubmitResult, error) {
	unlock := s.locks.Lock(responseID)
	defer unlock()

	resp, err := s.loadResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}

	if err := s.requireActive(ctx, resp.SurveyID); err != nil {
		return nil, err
	}

	r, err := s.resolver(ctx, resp.SurveyID)
	if err != nil {
		return nil, err
	}

	updated, answer, err := r.SubmitAnswer(resp, questionID, raw)
	if err != nil {
		logFailure(err, responseID, "answer rejected")
		return nil, err
	}

	// refuse to persist an answer that routes somewhere the respondent cannot go
	next, err := r.NextQuestion(updated)
	if err != nil {
		logFailure(err, responseID, "cannot determine next question")
		return nil, err
	}

	if err := s.store.SaveAnswer(ctx, updated, answer); err != nil {
		logFailure(err, responseID, "failed to save answer")
		return nil, asFault(err, "save answer")
	}

	result := &SubmitResult{Response: updated}
	if next != nil {
		id := next.ID
		result.NextQuestionID = &id
	}

	log.Debug().
		Str("responseID", responseID).
		Int64("questionID", questionID).
		Stringer("next", answer.Next).
		Msg("answer recorded")

	return result, nil
}

func (s *responseServiceImpl) NextQuestion(ctx context.Context, responseID string) (*flow.Question, error) {
	resp, err := s.loadResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Completed {
		return nil, nil
	}

	r, err := s.resolver(ctx, resp.SurveyID)
	if err != nil {
		return nil, err
	}

	q, err := r.NextQuestion(resp)
	if err != nil {
		logFailure(err, responseID, "cannot determine next question")
		return nil, err
	}
	return q, nil
}

func (s *responseServiceImpl) CompleteResponse(ctx context.Context, responseID string) (*flow.Response, error) {
	unlock := s.locks.Lock(responseID)
	defer unlock()

	resp, err := s.loadResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}

	r, err := s.resolver(ctx, resp.SurveyID)
	if err != nil {
		return nil, err
	}

	done, err := r.Complete(resp)
	if err != nil {
		logFailure(err, responseID, "completion refused")
		return nil, err
	}

	if err := s.store.UpdateResponse(ctx, done); err != nil {
		logFailure(err, responseID, "failed to complete response")
		return nil, asFault(err, "complete response")
	}

	log.Info().Str("responseID", responseID).Int("answers", len(done.Answers)).Msg("response completed")
	return done, nil
}
