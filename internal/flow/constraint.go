package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/paulexconde/surveyflow/pkg/fault"
)

// constraintEnv is the environment a constraint expression sees. The sample
// value only fixes the static type of `value` for compilation.
func constraintEnv(t QuestionType, v *Value) map[string]any {
	var value any

	switch t {
	case Text:
		value = ""
		if v != nil {
			value = v.Text
		}
	case SingleChoice:
		value = ""
		if v != nil && len(v.Selections) == 1 {
			value = v.Selections[0]
		}
	case MultipleChoice:
		value = []string{}
		if v != nil {
			value = v.Selections
		}
	case Rating:
		value = 0
		if v != nil && v.Number != nil {
			value = int(*v.Number)
		}
	case Number:
		value = 0.0
		if v != nil && v.Number != nil {
			value = *v.Number
		}
	case Date:
		value = time.Time{}
		if v != nil && v.Date != nil {
			value = *v.Date
		}
	case Location:
		point := map[string]any{"latitude": 0.0, "longitude": 0.0}
		if v != nil && v.Location != nil {
			point["latitude"] = v.Location.Latitude
			point["longitude"] = v.Location.Longitude
		}
		value = point
	}

	return map[string]any{"value": value}
}

func compileConstraint(q *Question) (*vm.Program, error) {
	return expr.Compile(q.Constraint, expr.Env(constraintEnv(q.Type, nil)), expr.AsBool())
}

func checkConstraint(q *Question, v Value) error {
	program, err := compileConstraint(q)
	if err != nil {
		return fault.NewValidationError("constraint", "constraint cannot be evaluated", err)
	}

	ok, err := evaluateExpression(program, constraintEnv(q.Type, &v))
	if err != nil {
		return fault.NewValidationError("constraint", "constraint cannot be evaluated", err)
	}
	if !ok {
		return fault.NewValidationError("constraint", fmt.Sprintf("answer does not satisfy %q", q.Constraint), nil)
	}
	return nil
}

func evaluateExpression(program *vm.Program, env map[string]any) (bool, error) {
	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, errors.New("expression did not return a boolean")
	}

	return result, nil
}
