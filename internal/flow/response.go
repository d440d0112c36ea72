package flow

import (
	"slices"
	"time"
)

type State int

const (
	InProgress State = iota + 1
	Complete
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Response holds one respondent's progress through a survey.
//
// VisitedQuestionIDs only grows and always contains the question of every
// answer; it is what keeps a respondent from answering a question twice.
type Response struct {
	ID                 string
	SurveyID           int64
	RespondentID       string
	Completed          bool
	StartedAt          time.Time
	CompletedAt        *time.Time
	VisitedQuestionIDs []int64
	Answers            []Answer
	// Version is bumped by the store on every update.
	Version int
}

// Answer records a validated value and the decision it led to.
type Answer struct {
	ID         string
	ResponseID string
	QuestionID int64
	Value      Value
	// Next is recorded at answer time and never recomputed.
	Next       Decision
	AnsweredAt time.Time
}

func (r *Response) State() State {
	if r.Completed {
		return Complete
	}
	return InProgress
}

func (r *Response) HasVisited(questionID int64) bool {
	return slices.Contains(r.VisitedQuestionIDs, questionID)
}

// LastDecision returns the decision of the most recent answer.
func (r *Response) LastDecision() (Decision, bool) {
	if len(r.Answers) == 0 {
		return Decision{}, false
	}
	return r.Answers[len(r.Answers)-1].Next, true
}

// clone copies the response deeply enough that appending to the copy never
// touches r.
func (r *Response) clone() *Response {
	cp := *r
	cp.VisitedQuestionIDs = slices.Clone(r.VisitedQuestionIDs)
	cp.Answers = slices.Clone(r.Answers)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
