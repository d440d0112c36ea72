package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/paulexconde/surveyflow/internal/config"
	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/internal/pkg/workerpool"
	"github.com/paulexconde/surveyflow/pkg/fault"
	"github.com/rs/zerolog/log"
)

// Handles survey authoring checks and the activation gate.
type SurveyService interface {
	// Validate the survey graph without changing anything.
	ValidateSurveyStructure(ctx context.Context, surveyID int64) (*flow.StructureReport, error)
	// Activate the survey only when its graph is valid. A failing report is
	// returned unchanged together with a structural error.
	ActivateSurvey(ctx context.Context, surveyID int64) (*flow.StructureReport, error)
	DeactivateSurvey(ctx context.Context, surveyID int64) error
	// Validate many surveys in parallel. Surveys that could not be loaded are
	// missing from the result and reported in the joined error.
	ValidateSurveys(ctx context.Context, surveyIDs []int64) (map[int64]*flow.StructureReport, error)
}

type surveyServiceImpl struct {
	store Store
	cfg   config.Validation
}

// Instantiate the SurveyService.
func NewSurveyService(store Store, cfg config.Validation) SurveyService {
	return &surveyServiceImpl{store: store, cfg: cfg}
}

func (s *surveyServiceImpl) ValidateSurveyStructure(ctx context.Context, surveyID int64) (*flow.StructureReport, error) {
	if _, err := s.store.LoadSurvey(ctx, surveyID); err != nil {
		return nil, asFault(err, fmt.Sprintf("load survey %d", surveyID))
	}

	g, err := loadGraph(ctx, s.store, surveyID)
	if err != nil {
		if fault.IsStructuralError(err) {
			// the rows themselves cannot form a graph
			return &flow.StructureReport{Valid: false, Endpoints: []int64{}, Errors: []string{faultMessage(err)}}, nil
		}
		return nil, err
	}

	report := flow.ValidateStructure(g)

	log.Debug().
		Int64("surveyID", surveyID).
		Bool("valid", report.Valid).
		Int("errors", len(report.Errors)).
		Msg("survey structure validated")

	return report, nil
}

func faultMessage(err error) string {
	var f *fault.Fault
	if errors.As(err, &f) {
		if f.Err != nil {
			return f.Message + ": " + f.Err.Error()
		}
		return f.Message
	}
	return err.Error()
}

func (s *surveyServiceImpl) ActivateSurvey(ctx context.Context, surveyID int64) (*flow.StructureReport, error) {
	report, err := s.ValidateSurveyStructure(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	if !report.Valid {
		log.Info().
			Int64("surveyID", surveyID).
			Strs("errors", report.Errors).
			Msg("survey activation refused")
		return report, report.Err()
	}

	if err := s.store.SetSurveyActive(ctx, surveyID, true); err != nil {
		return nil, asFault(err, fmt.Sprintf("activate survey %d", surveyID))
	}

	log.Info().Int64("surveyID", surveyID).Msg("survey activated")
	return report, nil
}

func (s *surveyServiceImpl) DeactivateSurvey(ctx context.Context, surveyID int64) error {
	if err := s.store.SetSurveyActive(ctx, surveyID, false); err != nil {
		return asFault(err, fmt.Sprintf("deactivate survey %d", surveyID))
	}

	log.Info().Int64("surveyID", surveyID).Msg("survey deactivated")
	return nil
}

func (s *surveyServiceImpl) ValidateSurveys(ctx context.Context, surveyIDs []int64) (map[int64]*flow.StructureReport, error) {
	pool := workerpool.NewWorkerPool(ctx, s.cfg.Workers, s.cfg.QueueSize)
	defer pool.Shutdown(ctx)

	var mu sync.Mutex
	reports := make(map[int64]*flow.StructureReport, len(surveyIDs))
	failures := make(map[int64]error)

	for _, id := range surveyIDs {
		id := id
		job := workerpool.WithRetry(s.cfg.Retries, s.cfg.RetryDelay, func(ctx context.Context) error {
			report, err := s.ValidateSurveyStructure(ctx, id)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failures[id] = err
				if fault.IsClientError(err) {
					return workerpool.Permanent(err)
				}
				return err
			}

			delete(failures, id)
			reports[id] = report
			return nil
		})

		if err := pool.Submit(ctx, job); err != nil {
			mu.Lock()
			failures[id] = err
			mu.Unlock()
			break
		}
	}

	pool.Wait()

	mu.Lock()
	defer mu.Unlock()

	var errs []error
	for _, id := range surveyIDs {
		if _, ok := reports[id]; ok {
			continue
		}
		err, ok := failures[id]
		if !ok {
			err = ctx.Err()
		}
		if err == nil {
			err = errors.New("not validated")
		}
		errs = append(errs, fmt.Errorf("survey %d: %w", id, err))
	}

	return reports, errors.Join(errs...)
}
