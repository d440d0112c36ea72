package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/paulexconde/surveyflow/internal/config"
	"github.com/paulexconde/surveyflow/internal/flow"
	"github.com/paulexconde/surveyflow/internal/models"
	"github.com/paulexconde/surveyflow/pkg/fault"
)

// memStore is an in-memory Store. Responses are copied in and out so callers
// never share state with it.
type memStore struct {
	mu        sync.Mutex
	surveys   map[int64]*models.Survey
	questions map[int64][]flow.Question
	options   map[int64][]flow.Option
	responses map[string]*flow.Response

	// graphFailures makes the next n LoadSurveyGraph calls fail.
	graphFailures int
	graphLoads    int
}

func newMemStore() *memStore {
	return &memStore{
		surveys:   make(map[int64]*models.Survey),
		questions: make(map[int64][]flow.Question),
		options:   make(map[int64][]flow.Option),
		responses: make(map[string]*flow.Response),
	}
}

func (m *memStore) addSurvey(id int64, active bool, questions []flow.Question, options []flow.Option) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.surveys[id] = &models.Survey{ID: id, Title: fmt.Sprintf("survey %d", id), Active: active}
	m.questions[id] = questions
	m.options[id] = options
}

func copyResponse(resp *flow.Response) *flow.Response {
	c := *resp
	c.VisitedQuestionIDs = slices.Clone(resp.VisitedQuestionIDs)
	c.Answers = slices.Clone(resp.Answers)
	return &c
}

func (m *memStore) LoadSurvey(_ context.Context, surveyID int64) (*models.Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.surveys[surveyID]
	if !ok {
		return nil, fault.NewClientError(fmt.Sprintf("survey %d", surveyID), fault.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (m *memStore) LoadSurveyGraph(_ context.Context, surveyID int64) ([]flow.Question, []flow.Option, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.graphLoads++
	if m.graphFailures > 0 {
		m.graphFailures--
		return nil, nil, fmt.Errorf("connection reset")
	}
	return slices.Clone(m.questions[surveyID]), slices.Clone(m.options[surveyID]), nil
}

func (m *memStore) SetSurveyActive(_ context.Context, surveyID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.surveys[surveyID]
	if !ok {
		return fault.NewClientError(fmt.Sprintf("survey %d", surveyID), fault.ErrNotFound)
	}
	s.Active = active
	return nil
}

func (m *memStore) CreateResponse(_ context.Context, resp *flow.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.responses[resp.ID]; ok {
		return fault.ErrUniqueViolation
	}
	m.responses[resp.ID] = copyResponse(resp)
	return nil
}

func (m *memStore) LoadResponse(_ context.Context, responseID string) (*flow.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp, ok := m.responses[responseID]
	if !ok {
		return nil, fault.NewClientError(fmt.Sprintf("response %s", responseID), fault.ErrNotFound)
	}
	return copyResponse(resp), nil
}

func (m *memStore) update(resp *flow.Response) error {
	stored, ok := m.responses[resp.ID]
	if !ok {
		return fault.NewClientError(fmt.Sprintf("response %s", resp.ID), fault.ErrNotFound)
	}
	if stored.Version != resp.Version {
		return fault.NewOperationError(fmt.Sprintf("response %s was modified concurrently", resp.ID), fault.ErrConflict)
	}

	resp.Version++
	m.responses[resp.ID] = copyResponse(resp)
	return nil
}

func (m *memStore) SaveAnswer(_ context.Context, resp *flow.Response, _ *flow.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(resp)
}

func (m *memStore) UpdateResponse(_ context.Context, resp *flow.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(resp)
}

func goTo(id int64) *flow.Decision {
	d := flow.MustToQuestion(id)
	return &d
}

func end() *flow.Decision {
	d := flow.End()
	return &d
}

// seedBranchingSurvey stores Q1 (Yes -> Q2, No -> Q3), Q2 -> Q4, Q3 -> Q4, Q4 -> end.
func seedBranchingSurvey(m *memStore, surveyID int64, active bool) {
	m.addSurvey(surveyID, active, []flow.Question{
		{ID: 1, SurveyID: surveyID, Text: "Do you like surveys?", Type: flow.SingleChoice, Order: 0, Required: true},
		{ID: 2, SurveyID: surveyID, Text: "Why?", Type: flow.Text, Order: 1, Required: true, DefaultNext: goTo(4)},
		{ID: 3, SurveyID: surveyID, Text: "Why not?", Type: flow.Text, Order: 2, Required: true, DefaultNext: goTo(4)},
		{ID: 4, SurveyID: surveyID, Text: "Anything else?", Type: flow.Text, Order: 3, Required: true, DefaultNext: end()},
	}, []flow.Option{
		{ID: 11, QuestionID: 1, Text: "Yes", Order: 0, Next: goTo(2)},
		{ID: 12, QuestionID: 1, Text: "No", Order: 1, Next: goTo(3)},
	})
}

// seedCyclicSurvey stores Q1 -> Q2 -> Q3 -> Q1.
func seedCyclicSurvey(m *memStore, surveyID int64, active bool) {
	m.addSurvey(surveyID, active, []flow.Question{
		{ID: 1, SurveyID: surveyID, Type: flow.Text, Order: 0, DefaultNext: goTo(2)},
		{ID: 2, SurveyID: surveyID, Type: flow.Text, Order: 1, DefaultNext: goTo(3)},
		{ID: 3, SurveyID: surveyID, Type: flow.Text, Order: 2, DefaultNext: goTo(1)},
	}, nil)
}

func testValidationConfig() config.Validation {
	return config.Validation{Workers: 2, QueueSize: 4, Retries: 3, RetryDelay: time.Millisecond}
}

func fixedClock() flow.ResolverOption {
	return flow.WithClock(func() time.Time { return time.Date(2025, 9, 17, 12, 0, 0, 0, time.UTC) })
}

func sequentialIDs() flow.ResolverOption {
	var mu sync.Mutex
	n := 0
	return flow.WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func mustStart(t *testing.T, svc ResponseService, surveyID int64) *flow.Response {
	t.Helper()

	resp, err := svc.StartResponse(context.Background(), surveyID, "respondent-1")
	if err != nil {
		t.Fatalf("start response: %v", err)
	}
	return resp
}
