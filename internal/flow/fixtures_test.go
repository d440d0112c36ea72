package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func goTo(id int64) *Decision {
	d := MustToQuestion(id)
	return &d
}

func ptr[T any](v T) *T {
	return &v
}

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

// branchingSurvey is Q1(SingleChoice: Yes->Q2, No->Q3), Q2(Text ->Q4),
// Q3(Text ->Q4), Q4(Text ->End).
func branchingSurvey(t *testing.T) *Graph {
	t.Helper()

	questions := []Question{
		{ID: 1, SurveyID: 10, Text: "Do you like it?", Type: SingleChoice, Order: 0, Required: true},
		{ID: 2, SurveyID: 10, Text: "What do you like?", Type: Text, Order: 1, Required: true, DefaultNext: goTo(4)},
		{ID: 3, SurveyID: 10, Text: "What would you change?", Type: Text, Order: 2, Required: true, DefaultNext: goTo(4)},
		{ID: 4, SurveyID: 10, Text: "Anything else?", Type: Text, Order: 3, Required: true},
	}
	options := []Option{
		{ID: 11, QuestionID: 1, Text: "Yes", Order: 0, Next: goTo(2)},
		{ID: 12, QuestionID: 1, Text: "No", Order: 1, Next: goTo(3)},
	}

	g, err := NewGraph(10, questions, options)
	require.NoError(t, err)
	return g
}

// textChain links text questions in the given order; the last one loops back
// to the first when loop is set, and ends the survey otherwise.
func textChain(t *testing.T, loop bool, ids ...int64) *Graph {
	t.Helper()

	questions := make([]Question, len(ids))
	for i, id := range ids {
		questions[i] = Question{ID: id, SurveyID: 10, Text: "q", Type: Text, Order: i, Required: true}
		switch {
		case i+1 < len(ids):
			questions[i].DefaultNext = goTo(ids[i+1])
		case loop:
			questions[i].DefaultNext = goTo(ids[0])
		}
	}

	g, err := NewGraph(10, questions, nil)
	require.NoError(t, err)
	return g
}
