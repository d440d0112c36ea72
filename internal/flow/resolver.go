package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulexconde/surveyflow/pkg/fault"
)

// Resolver drives responses through one survey graph. It never mutates the
// responses it is given; every transition returns an updated copy.
type Resolver struct {
	graph       *Graph
	now         func() time.Time
	idGenerator func() string
}

type ResolverOption func(*Resolver)

// WithClock replaces time.Now for answer and completion timestamps.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithIDGenerator replaces the uuid generator used for responses and answers.
func WithIDGenerator(gen func() string) ResolverOption {
	return func(r *Resolver) { r.idGenerator = gen }
}

// Instantiate a Resolver over the given graph.
func NewResolver(g *Graph, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		graph:       g,
		now:         time.Now,
		idGenerator: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Graph() *Graph {
	return r.graph
}

// Start opens a new response with nothing visited.
func (r *Resolver) Start(respondentID string) (*Response, error) {
	if r.graph.Len() == 0 {
		return nil, fault.NewOperationError(fmt.Sprintf("survey %d has no questions", r.graph.surveyID), nil)
	}

	return &Response{
		ID:                 r.idGenerator(),
		SurveyID:           r.graph.surveyID,
		RespondentID:       respondentID,
		StartedAt:          r.now().UTC(),
		VisitedQuestionIDs: []int64{},
		Answers:            []Answer{},
	}, nil
}

// expected returns the question the response is waiting for. ok is false once
// the flow has reached its end.
func (r *Resolver) expected(resp *Response) (id int64, ok bool) {
	last, answered := resp.LastDecision()
	if !answered {
		entry, found := r.graph.Entry()
		if !found {
			return 0, false
		}
		return entry.ID, true
	}
	return last.Target()
}

// SubmitAnswer validates raw as the answer to questionID and advances the
// response. A rejected answer leaves the response untouched.
func (r *Resolver) SubmitAnswer(resp *Response, questionID int64, raw json.RawMessage) (*Response, *Answer, error) {
	if resp.Completed {
		return nil, nil, fault.NewOperationError(fmt.Sprintf("response %s", resp.ID), fault.ErrAlreadyCompleted)
	}
	if resp.HasVisited(questionID) {
		return nil, nil, fault.NewOperationError(fmt.Sprintf("question %d in response %s", questionID, resp.ID), fault.ErrQuestionRevisited)
	}

	q, ok := r.graph.Question(questionID)
	if !ok {
		return nil, nil, fault.NewClientError(fmt.Sprintf("question %d is not part of survey %d", questionID, r.graph.surveyID), fault.ErrNotFound)
	}

	want, ok := r.expected(resp)
	if !ok {
		return nil, nil, fault.NewOperationError("survey flow has already ended", fault.ErrOutOfTurn)
	}
	if want != questionID {
		return nil, nil, fault.NewOperationError(fmt.Sprintf("expected an answer to question %d, got %d", want, questionID), fault.ErrOutOfTurn)
	}

	options := r.graph.options[questionID]

	value, err := ValidateAnswer(q, options, raw)
	if err != nil {
		return nil, nil, err
	}

	next, err := ResolveNext(q, options, value)
	if err != nil {
		return nil, nil, err
	}

	answer := Answer{
		ID:         r.idGenerator(),
		ResponseID: resp.ID,
		QuestionID: questionID,
		Value:      value,
		Next:       next,
		AnsweredAt: r.now().UTC(),
	}

	updated := resp.clone()
	updated.VisitedQuestionIDs = append(updated.VisitedQuestionIDs, questionID)
	updated.Answers = append(updated.Answers, answer)

	return updated, &answer, nil
}

// NextQuestion returns the question the respondent should see next, or nil
// when the flow has ended and the response should be completed.
func (r *Resolver) NextQuestion(resp *Response) (*Question, error) {
	last, answered := resp.LastDecision()
	if !answered {
		entry, ok := r.graph.Entry()
		if !ok {
			return nil, fault.NewOperationError(fmt.Sprintf("survey %d has no questions", r.graph.surveyID), nil)
		}
		return entry, nil
	}

	if last.IsEnd() {
		return nil, nil
	}

	target, ok := last.Target()
	if !ok {
		return nil, fault.NewConsistencyError(fmt.Sprintf("response %s recorded an invalid navigation decision", resp.ID), nil)
	}

	q, ok := r.graph.Question(target)
	if !ok {
		return nil, fault.NewConsistencyError(fmt.Sprintf("response %s routes to question %d outside survey %d", resp.ID, target, r.graph.surveyID), fault.ErrNotFound)
	}
	if resp.HasVisited(target) {
		return nil, fault.NewConsistencyError(fmt.Sprintf("response %s routes back to question %d", resp.ID, target), fault.ErrCycle)
	}

	return q, nil
}

// Complete closes the response. It is allowed once the last answer ended the
// survey, or once every required question has been visited.
func (r *Resolver) Complete(resp *Response) (*Response, error) {
	if resp.Completed {
		return nil, fault.NewOperationError(fmt.Sprintf("response %s", resp.ID), fault.ErrAlreadyCompleted)
	}

	if !r.terminated(resp) {
		return nil, fault.NewOperationError(fmt.Sprintf("response %s", resp.ID), fault.ErrNotTerminated)
	}

	at := r.now().UTC()
	updated := resp.clone()
	updated.Completed = true
	updated.CompletedAt = &at

	return updated, nil
}

func (r *Resolver) terminated(resp *Response) bool {
	if last, ok := resp.LastDecision(); ok && last.IsEnd() {
		return true
	}

	for _, q := range r.graph.Questions() {
		if q.Required && !resp.HasVisited(q.ID) {
			return false
		}
	}
	return len(resp.Answers) > 0
}

// IsFlowError reports whether err came from the flow rules rather than from
// storage or infrastructure.
func IsFlowError(err error) bool {
	return fault.IsValidationError(err) || fault.IsOperationError(err) ||
		fault.IsConsistencyError(err) || errors.Is(err, fault.ErrNotFound)
}
