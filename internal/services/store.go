package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/internal/models"
	"github.com/paulexconde/surveyflow/pkg/fault"
)

// Store is the persistence the services need. Implementations return
// fault.ErrNotFound (wrapped) for missing rows and an operation fault wrapping
// fault.ErrConflict when a response was updated concurrently.
type Store interface {
	LoadSurvey(ctx context.Context, surveyID int64) (*models.Survey, error)
	LoadSurveyGraph(ctx context.Context, surveyID int64) ([]flow.Question, []flow.Option, error)
	SetSurveyActive(ctx context.Context, surveyID int64, active bool) error

	CreateResponse(ctx context.Context, resp *flow.Response) error
	LoadResponse(ctx context.Context, responseID string) (*flow.Response, error)
	// SaveAnswer records answer together with resp's visited set and bumps resp.Version.
	SaveAnswer(ctx context.Context, resp *flow.Response, answer *flow.Answer) error
	UpdateResponse(ctx context.Context, resp *flow.Response) error
}

// loadGraph reads one survey's graph into an immutable snapshot for the
// duration of a single call.
func loadGraph(ctx context.Context, store Store, surveyID int64) (*flow.Graph, error) {
	questions, options, err := store.LoadSurveyGraph(ctx, surveyID)
	if err != nil {
		return nil, asFault(err, fmt.Sprintf("load graph of survey %d", surveyID))
	}
	return flow.NewGraph(surveyID, questions, options)
}

// asFault keeps faults as they are and reports anything else as internal.
func asFault(err error, msg string) error {
	var f *fault.Fault
	if errors.As(err, &f) {
		return err
	}
	return fault.NewInternalError(msg, err)
}
