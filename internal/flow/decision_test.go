package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToQuestion(t *testing.T) {
	_, err := ToQuestion(0)
	assert.ErrorContains(t, err, "must be positive")

	_, err = ToQuestion(-3)
	assert.Error(t, err)

	d, err := ToQuestion(5)
	require.NoError(t, err)
	target, ok := d.Target()
	assert.True(t, ok)
	assert.Equal(t, int64(5), target)
	assert.False(t, d.IsEnd())
	assert.True(t, d.Valid())
}

func TestDecisionEquality(t *testing.T) {
	assert.Equal(t, End(), End())
	assert.True(t, MustToQuestion(3) == MustToQuestion(3))
	assert.False(t, MustToQuestion(3) == MustToQuestion(4))
	assert.False(t, MustToQuestion(3) == End())
}

func TestDecisionZeroValueIsInvalid(t *testing.T) {
	var d Decision
	assert.False(t, d.Valid())
	assert.False(t, d.IsEnd())
	_, ok := d.Target()
	assert.False(t, ok)

	_, err := json.Marshal(d)
	assert.Error(t, err)
}

func TestDecisionJSON(t *testing.T) {
	b, err := json.Marshal(End())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end"}`, string(b))

	b, err = json.Marshal(MustToQuestion(7))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"question","questionId":7}`, string(b))

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(`{"type":"question","questionId":7}`), &d))
	assert.Equal(t, MustToQuestion(7), d)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"question","questionId":0}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"jump"}`), &d))
}

func TestDecisionScan(t *testing.T) {
	var d Decision
	require.NoError(t, d.Scan([]byte(`{"type":"end"}`)))
	assert.True(t, d.IsEnd())

	require.NoError(t, d.Scan(`{"type":"question","questionId":2}`))
	assert.Equal(t, MustToQuestion(2), d)

	assert.Error(t, d.Scan(42))

	v, err := MustToQuestion(2).Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"question","questionId":2}`, v.(string))
}
