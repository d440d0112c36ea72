package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/paulexconde/surveyflow/internal/flow"
)

type Response struct {
	ID                 string        `db:"id" json:"id"`
	SurveyID           int64         `db:"survey_id" json:"survey_id"`
	RespondentID       string        `db:"respondent_id" json:"respondent_id"`
	Completed          bool          `db:"completed" json:"completed"`
	StartedAt          time.Time     `db:"started_at" json:"started_at"`
	CompletedAt        *time.Time    `db:"completed_at" json:"completed_at"`
	VisitedQuestionIDs pq.Int64Array `db:"visited_question_ids" json:"visited_question_ids"`
	Version            int           `db:"version" json:"version"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`

	// Answer recorded in the same transaction as this update, if any.
	Answer *Answer `db:"-" json:"-"`
}

func (Response) PrimaryKey() string    { return "id" }
func (Response) VersionColumn() string { return "version" }

type Answer struct {
	ID         string        `db:"id" json:"id"`
	ResponseID string        `db:"response_id" json:"response_id"`
	QuestionID int64         `db:"question_id" json:"question_id"`
	Value      flow.Value    `db:"value" json:"value"`
	Next       flow.Decision `db:"next" json:"next"`
	AnsweredAt time.Time     `db:"answered_at" json:"answered_at"`
}

func (Answer) PrimaryKey() string { return "id" }

// NewResponse converts a domain response into its row.
func NewResponse(resp *flow.Response) *Response {
	return &Response{
		ID:                 resp.ID,
		SurveyID:           resp.SurveyID,
		RespondentID:       resp.RespondentID,
		Completed:          resp.Completed,
		StartedAt:          resp.StartedAt,
		CompletedAt:        resp.CompletedAt,
		VisitedQuestionIDs: pq.Int64Array(resp.VisitedQuestionIDs),
		Version:            resp.Version,
	}
}

func NewAnswer(a *flow.Answer) *Answer {
	return &Answer{
		ID:         a.ID,
		ResponseID: a.ResponseID,
		QuestionID: a.QuestionID,
		Value:      a.Value,
		Next:       a.Next,
		AnsweredAt: a.AnsweredAt,
	}
}

// ToFlow converts the row back into a domain response carrying answers.
func (r *Response) ToFlow(answers []Answer) *flow.Response {
	resp := &flow.Response{
		ID:                 r.ID,
		SurveyID:           r.SurveyID,
		RespondentID:       r.RespondentID,
		Completed:          r.Completed,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		VisitedQuestionIDs: []int64(r.VisitedQuestionIDs),
		Answers:            make([]flow.Answer, 0, len(answers)),
		Version:            r.Version,
	}
	if resp.VisitedQuestionIDs == nil {
		resp.VisitedQuestionIDs = []int64{}
	}

	for _, a := range answers {
		resp.Answers = append(resp.Answers, flow.Answer{
			ID:         a.ID,
			ResponseID: a.ResponseID,
			QuestionID: a.QuestionID,
			Value:      a.Value,
			Next:       a.Next,
			AnsweredAt: a.AnsweredAt,
		})
	}

	return resp
}
