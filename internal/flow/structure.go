package flow

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/paulexconde/surveyflow/pkg/fault"
)

// endNode is the sentinel node every terminating decision points at. It is
// internal to the traversal and never appears in reports.
const endNode int64 = 0

// StructureReport is the outcome of ValidateStructure.
type StructureReport struct {
	Valid bool `json:"valid"`
	// CyclePath starts and ends on the same question, e.g. [1,2,3,1].
	CyclePath []int64 `json:"cyclePath"`
	// Endpoints are the questions from which the end of the survey is reachable.
	Endpoints []int64  `json:"endpoints"`
	Errors    []string `json:"errors"`
}

// Err returns the report as a structural fault, or nil for a valid survey.
func (r *StructureReport) Err() error {
	if r.Valid {
		return nil
	}

	var cause error
	if r.CyclePath != nil {
		cause = fault.ErrCycle
	}
	return fault.NewStructuralError("survey structure is invalid: "+strings.Join(r.Errors, "; "), cause)
}

type edge struct {
	// where the edge is declared, for error messages
	origin string
	to     Decision
}

type color uint8

const (
	white color = iota
	grey
	black
)

// ValidateStructure checks that the survey graph is acyclic, that every edge
// stays inside the survey, and that the end of the survey is reachable. It
// reports every defect it finds rather than stopping at the first one.
func ValidateStructure(g *Graph) *StructureReport {
	report := &StructureReport{Endpoints: []int64{}, Errors: []string{}}

	fail := func(format string, args ...any) {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
	}

	if g.Len() == 0 {
		fail("survey %d has no questions", g.surveyID)
		return report
	}

	checkQuestionConfig(g, fail)

	// adjacency over question ids; endNode stands for the end of the survey
	succ := make(map[int64][]int64, g.Len())
	for _, id := range g.ordered {
		for _, e := range followableEdges(g, id) {
			if !e.to.Valid() {
				fail("%s has an invalid navigation decision", e.origin)
				continue
			}
			if e.to.IsEnd() {
				succ[id] = append(succ[id], endNode)
				continue
			}

			target, _ := e.to.Target()
			if _, ok := g.questions[target]; !ok {
				fail("%s points to question %d which does not belong to survey %d", e.origin, target, g.surveyID)
				continue
			}
			succ[id] = append(succ[id], target)
		}
	}

	report.CyclePath = findCycle(g.ordered, succ)
	if report.CyclePath != nil {
		fail("%v: %s", fault.ErrCycle, formatPath(report.CyclePath))
	}

	report.Endpoints = endpoints(g.ordered, succ)
	if len(report.Endpoints) == 0 {
		fail("no question leads to the end of the survey")
	}

	report.Valid = len(report.Errors) == 0
	return report
}

// followableEdges lists the decisions a respondent can actually take from a
// question. A required branching question only follows its options; an
// optional one may also be skipped, which follows its default.
func followableEdges(g *Graph, id int64) []edge {
	q := g.questions[id]

	var edges []edge
	if q.SupportsBranching() {
		for _, o := range g.options[id] {
			edges = append(edges, edge{
				origin: fmt.Sprintf("question %d option %d", id, o.ID),
				to:     orEnd(o.Next),
			})
		}
		if q.Required {
			return edges
		}
	}

	return append(edges, edge{
		origin: fmt.Sprintf("question %d", id),
		to:     orEnd(q.DefaultNext),
	})
}

// findCycle runs a three-colour depth-first search from every question in
// display order and returns the first cycle found.
func findCycle(order []int64, succ map[int64][]int64) []int64 {
	colors := make(map[int64]color, len(order))
	var stack []int64
	var cycle []int64

	var visit func(id int64) bool
	visit = func(id int64) bool {
		colors[id] = grey
		stack = append(stack, id)

		for _, next := range succ[id] {
			if next == endNode {
				continue
			}
			switch colors[next] {
			case grey:
				start := slices.Index(stack, next)
				cycle = append(slices.Clone(stack[start:]), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return false
	}

	for _, id := range order {
		if colors[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// endpoints walks the reversed edges back from the end sentinel.
func endpoints(order []int64, succ map[int64][]int64) []int64 {
	pred := make(map[int64][]int64, len(order))
	for _, from := range order {
		for _, to := range succ[from] {
			pred[to] = append(pred[to], from)
		}
	}

	reached := map[int64]bool{}
	queue := []int64{endNode}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range pred[cur] {
			if !reached[p] {
				reached[p] = true
				queue = append(queue, p)
			}
		}
	}

	out := make([]int64, 0, len(reached))
	for id := range reached {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func formatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, " -> ")
}

// checkQuestionConfig reports defects in per-question configuration.
func checkQuestionConfig(g *Graph, fail func(string, ...any)) {
	orders := make(map[int]int64, g.Len())

	for _, id := range g.ordered {
		q := g.questions[id]
		options := g.options[id]

		if !q.Type.Valid() {
			fail("question %d has unknown type %d", id, int(q.Type))
			continue
		}
		if q.SurveyID != 0 && q.SurveyID != g.surveyID {
			fail("question %d belongs to survey %d, not %d", id, q.SurveyID, g.surveyID)
		}

		if q.Order < 0 {
			fail("question %d has negative order index %d", id, q.Order)
		} else if other, dup := orders[q.Order]; dup {
			fail("questions %d and %d share order index %d", other, id, q.Order)
		} else {
			orders[q.Order] = id
		}

		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			fail("question %d has min %v greater than max %v", id, *q.Min, *q.Max)
		}
		if q.MinDate != nil && q.MaxDate != nil && q.MinDate.After(*q.MaxDate) {
			fail("question %d has min date after max date", id)
		}

		if q.Constraint != "" {
			if _, err := compileConstraint(&q); err != nil {
				fail("question %d has an invalid constraint: %v", id, err)
			}
		}

		switch {
		case !q.Type.HasOptions() && len(options) > 0:
			fail("question %d of type %s cannot have options", id, q.Type)
		case q.Type.HasOptions() && len(options) == 0:
			fail("question %d of type %s has no options", id, q.Type)
		}

		texts := make(map[string]struct{}, len(options))
		for _, o := range options {
			if _, dup := texts[o.Text]; dup {
				fail("question %d has more than one option %q", id, o.Text)
			}
			texts[o.Text] = struct{}{}
		}

		if q.Type == Rating && len(options) > 0 {
			checkRatingCoverage(&q, options, fail)
		}
	}
}

// checkRatingCoverage requires one option per selectable rating value, so
// that every accepted rating has somewhere to go.
func checkRatingCoverage(q *Question, options []Option, fail func(string, ...any)) {
	lo, hi := ratingBounds(q)
	if hi-lo > 100 {
		fail("question %d rating range %d..%d is too wide to branch on", q.ID, lo, hi)
		return
	}

	covered := make(map[int64]bool, len(options))
	var bad []string
	for _, o := range options {
		n, err := strconv.ParseInt(o.Text, 10, 64)
		if err != nil || n < lo || n > hi {
			bad = append(bad, strconv.Quote(o.Text))
			continue
		}
		covered[n] = true
	}
	if len(bad) > 0 {
		fail("question %d has rating options outside %d..%d: %s", q.ID, lo, hi, strings.Join(bad, ", "))
	}

	for n := lo; n <= hi; n++ {
		if !covered[n] {
			fail("question %d has no option for rating %d", q.ID, n)
		}
	}
}
