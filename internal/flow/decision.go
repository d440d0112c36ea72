package flow

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

type decisionKind uint8

const (
	kindEnd decisionKind = iota + 1
	kindQuestion
)

// Decision is where a respondent goes after answering: a specific question
// or the end of the survey. The zero value is not a decision.
type Decision struct {
	kind   decisionKind
	target int64
}

// ToQuestion builds a decision routing to the question with the given id.
func ToQuestion(id int64) (Decision, error) {
	if id <= 0 {
		return Decision{}, fmt.Errorf("question id must be positive, got %d", id)
	}
	return Decision{kind: kindQuestion, target: id}, nil
}

// MustToQuestion is ToQuestion for ids known to be valid, such as literals in tests
// and fixtures. It panics on a non-positive id.
func MustToQuestion(id int64) Decision {
	d, err := ToQuestion(id)
	if err != nil {
		panic(err)
	}
	return d
}

// End builds the decision that terminates the survey.
func End() Decision {
	return Decision{kind: kindEnd}
}

func (d Decision) Valid() bool {
	return d.kind == kindEnd || (d.kind == kindQuestion && d.target > 0)
}

func (d Decision) IsEnd() bool {
	return d.kind == kindEnd
}

// Target returns the question id a GoTo decision points at.
func (d Decision) Target() (int64, bool) {
	if d.kind != kindQuestion {
		return 0, false
	}
	return d.target, true
}

func (d Decision) String() string {
	switch d.kind {
	case kindEnd:
		return "end"
	case kindQuestion:
		return fmt.Sprintf("question(%d)", d.target)
	default:
		return "invalid"
	}
}

// orEnd returns the decision d points at, or End when d is unset.
func orEnd(d *Decision) Decision {
	if d == nil {
		return End()
	}
	return *d
}

type decisionJSON struct {
	Type       string `json:"type"`
	QuestionID int64  `json:"questionId,omitempty"`
}

func (d Decision) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case kindEnd:
		return json.Marshal(decisionJSON{Type: "end"})
	case kindQuestion:
		return json.Marshal(decisionJSON{Type: "question", QuestionID: d.target})
	default:
		return nil, errors.New("cannot marshal an invalid navigation decision")
	}
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw decisionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case "end":
		*d = End()
	case "question":
		next, err := ToQuestion(raw.QuestionID)
		if err != nil {
			return err
		}
		*d = next
	default:
		return fmt.Errorf("unknown navigation decision type %q", raw.Type)
	}

	return nil
}

// Value stores the decision as json, for jsonb columns.
func (d Decision) Value() (driver.Value, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Decision) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into a navigation decision", src)
	}
}
