package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testdata(name string) string {
	return filepath.Join("..", "surveyfile", "testdata", name)
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd, out
}

func TestValidate_ValidFile(t *testing.T) {
	validateFormat = "text"
	validateSurveys = nil
	cmd, out := newTestCmd()

	err := runValidate(cmd, []string{testdata("onboarding.hcl")})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "onboarding.hcl: valid (endpoints: 1, 2, 3, 4)")
}

func TestValidate_CyclicFile(t *testing.T) {
	validateFormat = "text"
	validateSurveys = nil
	cmd, out := newTestCmd()

	err := runValidate(cmd, []string{testdata("onboarding.yaml"), testdata("cyclic.hcl")})
	assert.ErrorIs(t, err, errInvalidSurvey)
	assert.Contains(t, out.String(), "onboarding.yaml: valid")
	assert.Contains(t, out.String(), "cyclic.hcl: invalid")
	assert.Contains(t, out.String(), "cycle detected: 1 -> 2 -> 3 -> 1")
}

func TestValidate_JSON(t *testing.T) {
	validateFormat = "json"
	validateSurveys = nil
	defer func() { validateFormat = "text" }()
	cmd, out := newTestCmd()

	err := runValidate(cmd, []string{testdata("cyclic.hcl")})
	assert.ErrorIs(t, err, errInvalidSurvey)

	var reports []struct {
		Source    string  `json:"source"`
		Valid     bool    `json:"valid"`
		CyclePath []int64 `json:"cyclePath"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Valid)
	assert.Equal(t, []int64{1, 2, 3, 1}, reports[0].CyclePath)
}

func TestValidate_BrokenFile(t *testing.T) {
	validateFormat = "text"
	validateSurveys = nil
	cmd, out := newTestCmd()

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("survey_id: 1\nquestions:\n  - id: 1\n    type: slider\n"), 0644))

	err := runValidate(cmd, []string{path})
	assert.ErrorIs(t, err, errInvalidSurvey)
	assert.Contains(t, out.String(), `broken.yaml: error:`)
	assert.Contains(t, out.String(), `unknown question type "slider"`)
}

func TestValidate_NothingToDo(t *testing.T) {
	validateFormat = "text"
	validateSurveys = nil
	cmd, _ := newTestCmd()

	err := runValidate(cmd, nil)
	assert.ErrorContains(t, err, "nothing to validate")
}
