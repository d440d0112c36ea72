// Package surveyfile reads survey definitions from .hcl, .json (HCL json
// syntax) and .yaml files so they can be validated without a database.
package surveyfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/paulexconde/surveyflow/internal/flow"
	"gopkg.in/yaml.v3"
)

type File struct {
	SurveyID  int64          `hcl:"survey_id" yaml:"survey_id"`
	Title     string         `hcl:"title,optional" yaml:"title"`
	Questions []QuestionSpec `hcl:"question,block" yaml:"questions"`
}

type QuestionSpec struct {
	ID       int64  `hcl:"id" yaml:"id"`
	Type     string `hcl:"type" yaml:"type"`
	Text     string `hcl:"text,optional" yaml:"text"`
	Order    *int   `hcl:"order,optional" yaml:"order"`
	Required bool   `hcl:"required,optional" yaml:"required"`

	// At most one of Goto and End.
	Goto *int64 `hcl:"goto,optional" yaml:"goto"`
	End  *bool  `hcl:"end,optional" yaml:"end"`

	Min        *float64 `hcl:"min,optional" yaml:"min"`
	Max        *float64 `hcl:"max,optional" yaml:"max"`
	MinDate    *string  `hcl:"min_date,optional" yaml:"min_date"`
	MaxDate    *string  `hcl:"max_date,optional" yaml:"max_date"`
	Constraint string   `hcl:"constraint,optional" yaml:"constraint"`

	Options []OptionSpec `hcl:"option,block" yaml:"options"`
}

type OptionSpec struct {
	ID   *int64 `hcl:"id,optional" yaml:"id"`
	Text string `hcl:"text" yaml:"text"`
	Goto *int64 `hcl:"goto,optional" yaml:"goto"`
	End  *bool  `hcl:"end,optional" yaml:"end"`
}

// Definition is a decoded survey ready to be turned into a graph.
type Definition struct {
	SurveyID  int64
	Title     string
	Questions []flow.Question
	Options   []flow.Option
}

func (d *Definition) Graph() (*flow.Graph, error) {
	return flow.NewGraph(d.SurveyID, d.Questions, d.Options)
}

// Load reads the survey definition at path. The format follows the extension.
func Load(path string) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(filepath.Base(path), src)
}

// Parse decodes src; filename only selects the format and labels diagnostics.
func Parse(filename string, src []byte) (*Definition, error) {
	var file File

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl", ".json":
		if err := hclsimple.Decode(filename, src, nil, &file); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(src))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("unsupported survey file %q: want .hcl, .json or .yaml", filename)
	}

	def, err := file.Definition()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return def, nil
}

func decision(gotoID *int64, end *bool) (*flow.Decision, error) {
	ends := end != nil && *end
	switch {
	case gotoID != nil && ends:
		return nil, errors.New("goto and end are mutually exclusive")
	case gotoID != nil:
		d, err := flow.ToQuestion(*gotoID)
		if err != nil {
			return nil, err
		}
		return &d, nil
	case ends:
		d := flow.End()
		return &d, nil
	default:
		return nil, nil
	}
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, fmt.Errorf("date %q must look like 2006-01-02", *s)
	}
	return &t, nil
}

// Definition converts the decoded file. Questions without an order take their
// position in the file; options without an id are numbered after the largest
// explicit option id.
func (f *File) Definition() (*Definition, error) {
	if f.SurveyID <= 0 {
		return nil, fmt.Errorf("survey_id must be positive, got %d", f.SurveyID)
	}

	def := &Definition{SurveyID: f.SurveyID, Title: f.Title}

	var nextOptionID int64
	for _, q := range f.Questions {
		for _, o := range q.Options {
			if o.ID != nil && *o.ID > nextOptionID {
				nextOptionID = *o.ID
			}
		}
	}

	for i, spec := range f.Questions {
		q, err := spec.question(f.SurveyID, i)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", spec.ID, err)
		}
		def.Questions = append(def.Questions, q)

		for j, o := range spec.Options {
			next, err := decision(o.Goto, o.End)
			if err != nil {
				return nil, fmt.Errorf("question %d option %q: %w", spec.ID, o.Text, err)
			}

			var id int64
			if o.ID != nil {
				id = *o.ID
			} else {
				nextOptionID++
				id = nextOptionID
			}

			def.Options = append(def.Options, flow.Option{
				ID:         id,
				QuestionID: spec.ID,
				Text:       o.Text,
				Order:      j,
				Next:       next,
			})
		}
	}

	return def, nil
}

func (spec *QuestionSpec) question(surveyID int64, position int) (flow.Question, error) {
	t, err := flow.ParseQuestionType(spec.Type)
	if err != nil {
		return flow.Question{}, err
	}

	next, err := decision(spec.Goto, spec.End)
	if err != nil {
		return flow.Question{}, err
	}

	minDate, err := parseDate(spec.MinDate)
	if err != nil {
		return flow.Question{}, fmt.Errorf("min_date: %w", err)
	}
	maxDate, err := parseDate(spec.MaxDate)
	if err != nil {
		return flow.Question{}, fmt.Errorf("max_date: %w", err)
	}

	order := position
	if spec.Order != nil {
		order = *spec.Order
	}

	return flow.Question{
		ID:          spec.ID,
		SurveyID:    surveyID,
		Text:        spec.Text,
		Type:        t,
		Order:       order,
		Required:    spec.Required,
		DefaultNext: next,
		Min:         spec.Min,
		Max:         spec.Max,
		MinDate:     minDate,
		MaxDate:     maxDate,
		Constraint:  spec.Constraint,
	}, nil
}
