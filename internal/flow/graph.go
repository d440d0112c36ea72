package flow

import (
	"fmt"
	"slices"
	"time"

	"github.com/paulexconde/surveyflow/pkg/fault"
)

// Question is one node of a survey's flow graph.
type Question struct {
	ID       int64
	SurveyID int64
	Text     string
	Type     QuestionType
	Order    int
	Required bool

	// DefaultNext is followed by non-branching questions, and by optional
	// branching questions that were skipped.
	DefaultNext *Decision

	// Number and Rating bounds. Rating defaults to [1,5].
	Min *float64
	Max *float64
	// Date bounds.
	MinDate *time.Time
	MaxDate *time.Time

	// Constraint is an optional boolean expression over `value`, checked after
	// the type rule passes.
	Constraint string
}

func (q *Question) SupportsBranching() bool {
	return q.Type.SupportsBranching()
}

// Option is a selectable answer of a choice or rating question.
type Option struct {
	ID         int64
	QuestionID int64
	Text       string
	Order      int
	Next       *Decision
}

// Graph is an immutable snapshot of one survey's questions and options.
// Edges are stored as ids, never as references between entities.
type Graph struct {
	surveyID  int64
	questions map[int64]Question
	options   map[int64][]Option
	// question ids sorted by order index, then id
	ordered []int64
}

// NewGraph indexes the questions and options of one survey. It rejects input
// that cannot be indexed unambiguously; every other defect is left for
// ValidateStructure to report.
func NewGraph(surveyID int64, questions []Question, options []Option) (*Graph, error) {
	g := &Graph{
		surveyID:  surveyID,
		questions: make(map[int64]Question, len(questions)),
		options:   make(map[int64][]Option),
		ordered:   make([]int64, 0, len(questions)),
	}

	for _, q := range questions {
		if q.ID <= 0 {
			return nil, fault.NewStructuralError(fmt.Sprintf("question id must be positive, got %d", q.ID), nil)
		}
		if _, ok := g.questions[q.ID]; ok {
			return nil, fault.NewStructuralError(fmt.Sprintf("duplicate question id %d", q.ID), nil)
		}
		g.questions[q.ID] = q
		g.ordered = append(g.ordered, q.ID)
	}

	seen := make(map[int64]struct{}, len(options))
	for _, o := range options {
		if _, ok := seen[o.ID]; ok {
			return nil, fault.NewStructuralError(fmt.Sprintf("duplicate option id %d", o.ID), nil)
		}
		seen[o.ID] = struct{}{}

		if _, ok := g.questions[o.QuestionID]; !ok {
			return nil, fault.NewStructuralError(fmt.Sprintf("option %d belongs to unknown question %d", o.ID, o.QuestionID), nil)
		}
		g.options[o.QuestionID] = append(g.options[o.QuestionID], o)
	}

	for qid := range g.options {
		slices.SortStableFunc(g.options[qid], func(a, b Option) int {
			if a.Order != b.Order {
				return a.Order - b.Order
			}
			return cmpInt64(a.ID, b.ID)
		})
	}

	slices.SortFunc(g.ordered, func(a, b int64) int {
		qa, qb := g.questions[a], g.questions[b]
		if qa.Order != qb.Order {
			return qa.Order - qb.Order
		}
		return cmpInt64(a, b)
	})

	return g, nil
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (g *Graph) SurveyID() int64 {
	return g.surveyID
}

func (g *Graph) Len() int {
	return len(g.questions)
}

// Question returns a copy of the question with the given id.
func (g *Graph) Question(id int64) (*Question, bool) {
	q, ok := g.questions[id]
	if !ok {
		return nil, false
	}
	return &q, true
}

// Options returns a copy of the question's options in display order.
func (g *Graph) Options(questionID int64) []Option {
	return slices.Clone(g.options[questionID])
}

// Questions returns copies of all questions in display order.
func (g *Graph) Questions() []Question {
	out := make([]Question, 0, len(g.ordered))
	for _, id := range g.ordered {
		out = append(out, g.questions[id])
	}
	return out
}

// Entry returns the question a respondent sees first: the lowest order index.
func (g *Graph) Entry() (*Question, bool) {
	if len(g.ordered) == 0 {
		return nil, false
	}
	return g.Question(g.ordered[0])
}

// ResolveNext returns the decision to follow after the given question was
// answered with v.
func (g *Graph) ResolveNext(questionID int64, v Value) (Decision, error) {
	q, ok := g.questions[questionID]
	if !ok {
		return Decision{}, fmt.Errorf("question %d: %w", questionID, fault.ErrNotFound)
	}
	return ResolveNext(&q, g.options[questionID], v)
}

// ResolveNext picks the outgoing edge of q for an answer already accepted by
// ValidateAnswer. Branching questions follow the selected option; a selection
// that matches no option is a validation error, never a default. An option
// without an explicit next ends the survey.
func ResolveNext(q *Question, options []Option, v Value) (Decision, error) {
	if !q.SupportsBranching() || v.Empty {
		return orEnd(q.DefaultNext), nil
	}

	selected, ok := strategies[q.Type].selection(v)
	if !ok {
		return Decision{}, fault.NewValidationError("answer", "answer carries no selection", fault.ErrUnknownOption)
	}

	for _, o := range options {
		if o.Text == selected {
			return orEnd(o.Next), nil
		}
	}

	return Decision{}, fault.NewValidationError("answer", fmt.Sprintf("option %q", selected), fault.ErrUnknownOption)
}
