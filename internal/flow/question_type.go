package flow

import (
	"encoding/json"
	"fmt"
)

// The type of question being asked.
type QuestionType int

const (
	Text QuestionType = iota + 1
	SingleChoice
	MultipleChoice
	Rating
	Location
	Number
	Date
)

// typeStrategy holds everything that differs between question types.
type typeStrategy struct {
	name string
	// options each carry their own next decision.
	branching bool
	// options are part of the question configuration.
	hasOptions bool
	validate   func(q *Question, options []Option, raw json.RawMessage) (Value, error)
	// selection extracts the option text a branching answer picked.
	selection func(v Value) (string, bool)
}

var strategies map[QuestionType]typeStrategy

func init() {
	strategies = map[QuestionType]typeStrategy{
		Text:           {name: "text", validate: validateText},
		SingleChoice:   {name: "single_choice", branching: true, hasOptions: true, validate: validateSingleChoice, selection: choiceSelection},
		MultipleChoice: {name: "multiple_choice", hasOptions: true, validate: validateMultipleChoice},
		Rating:         {name: "rating", branching: true, hasOptions: true, validate: validateRating, selection: ratingSelection},
		Location:       {name: "location", validate: validateLocation},
		Number:         {name: "number", validate: validateNumber},
		Date:           {name: "date", validate: validateDate},
	}
}

func (t QuestionType) Valid() bool {
	_, ok := strategies[t]
	return ok
}

func (t QuestionType) String() string {
	if s, ok := strategies[t]; ok {
		return s.name
	}
	return fmt.Sprintf("QuestionType(%d)", int(t))
}

// SupportsBranching reports whether each option of the type routes independently.
func (t QuestionType) SupportsBranching() bool {
	return strategies[t].branching
}

// HasOptions reports whether questions of the type carry an option list.
func (t QuestionType) HasOptions() bool {
	return strategies[t].hasOptions
}

// ParseQuestionType maps a stored type name such as "single_choice" to its enum value.
func ParseQuestionType(name string) (QuestionType, error) {
	for t, s := range strategies {
		if s.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown question type %q", name)
}

func (t QuestionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid question type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *QuestionType) UnmarshalText(b []byte) error {
	parsed, err := ParseQuestionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
