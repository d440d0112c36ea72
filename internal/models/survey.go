package models

import (
	"time"

	"github.com/paulexconde/surveyflow/internal/flow"
)

type Survey struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Active      bool       `db:"active" json:"active"`
	ActivatedAt *time.Time `db:"activated_at" json:"activated_at"`
}

func (Survey) PrimaryKey() string { return "id" }

// Question is a row of the questions table. Navigation is stored as a jsonb
// decision, never as a magic id.
type Question struct {
	ID           int64          `db:"id" json:"id"`
	SurveyID     int64          `db:"survey_id" json:"survey_id"`
	Text         string         `db:"text" json:"text"`
	QuestionType string         `db:"question_type" json:"type"`
	Order        int            `db:"order_index" json:"order"`
	Required     bool           `db:"required" json:"required"`
	DefaultNext  *flow.Decision `db:"default_next" json:"default_next"`
	Min          *float64       `db:"min_value" json:"min"`
	Max          *float64       `db:"max_value" json:"max"`
	MinDate      *time.Time     `db:"min_date" json:"min_date"`
	MaxDate      *time.Time     `db:"max_date" json:"max_date"`
	Constraint   string         `db:"constraint_expr" json:"constraint"`
}

func (Question) PrimaryKey() string { return "id" }

type Option struct {
	ID         int64          `db:"id" json:"id"`
	QuestionID int64          `db:"question_id" json:"question_id"`
	Text       string         `db:"text" json:"text"`
	Order      int            `db:"order_index" json:"order"`
	Next       *flow.Decision `db:"next" json:"next"`
}

func (Option) PrimaryKey() string { return "id" }
