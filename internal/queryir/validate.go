package queryir

import (
	"fmt"
)

// ValidationResult contains the invariant check of a compiled query.
type ValidationResult struct {
	// IsValid is true when no problems were found.
	IsValid bool

	// Problems lists every violated invariant, in discovery order.
	// Empty when IsValid is true.
	Problems []string
}

// Validate checks a compiled query against the invariants listed in the
// package documentation.
//
// Validate is a pure function with no side effects. The planner calls it on
// every compiled query in tests; ports may call it before execution.
func Validate(q Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(q)

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
	next     int
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q.Alias == "" {
		v.addProblem("query has no root alias")
	}
	if len(q.Select) == 0 || q.Select[0] != q.Alias {
		v.addProblem("select list must start with root alias %q", q.Alias)
	}
	if len(q.Select) != len(q.Joins)+1 {
		v.addProblem("select list has %d entries for %d joins", len(q.Select), len(q.Joins))
	}

	for i, j := range q.Joins {
		v.validateJoin(i, j, q.Alias)
	}

	for i, c := range q.Clauses {
		v.validateClause(i, c)
	}

	if len(q.Params) != v.next {
		v.addProblem("query binds %d params for %d placeholders", len(q.Params), v.next)
	}

	if q.OrderBy != nil {
		if q.OrderBy.Direction != Asc && q.OrderBy.Direction != Desc {
			v.addProblem("invalid order direction %q", q.OrderBy.Direction)
		}
		if q.OrderBy.Field.Field == "" {
			v.addProblem("order by has no field")
		}
	}

	if q.MaxResults != nil && *q.MaxResults < 0 {
		v.addProblem("negative max results %d", *q.MaxResults)
	}
}

func (v *validator) validateJoin(i int, j Join, root string) {
	if j.Kind != JoinLeft {
		v.addProblem("join %d: unsupported kind %q", i, j.Kind)
	}
	if j.Path.Relation != root {
		v.addProblem("join %d: path %q does not start at root alias %q", i, j.Path, root)
	}
	if j.Alias != j.Path.Field {
		v.addProblem("join %d: alias %q differs from relation name %q", i, j.Alias, j.Path.Field)
	}
}

func (v *validator) validateClause(i int, c Clause) {
	switch {
	case i == 0 && c.Combinator != CombinatorWhere:
		v.addProblem("clause 0: first clause must use WHERE, got %s", c.Combinator)
	case i > 0 && c.Combinator != CombinatorAnd && c.Combinator != CombinatorOr:
		v.addProblem("clause %d: combinator must be AND or OR, got %s", i, c.Combinator)
	}

	switch p := c.Predicate.(type) {
	case Comparison:
		v.validateComparison(i, p)
	case *Comparison:
		v.validateComparison(i, *p)
	case Range:
		v.validateRange(i, p)
	case *Range:
		v.validateRange(i, *p)
	case nil:
		v.addProblem("clause %d: nil predicate", i)
	default:
		v.addProblem("clause %d: unknown predicate type %T", i, p)
	}
}

func (v *validator) validateComparison(i int, c Comparison) {
	switch c.Op {
	case OpEq, OpLike, OpGte, OpLte:
	default:
		v.addProblem("clause %d: unknown operator %q", i, c.Op)
	}
	v.expectIndex(i, c.Index)
}

func (v *validator) validateRange(i int, r Range) {
	v.expectIndex(i, r.Start)
	if r.End != r.Start+1 {
		v.addProblem("clause %d: range end ?%d does not follow start ?%d", i, r.End, r.Start)
	}
	v.next = r.End + 1
}

func (v *validator) expectIndex(i, got int) {
	if got != v.next {
		v.addProblem("clause %d: placeholder ?%d, expected ?%d", i, got, v.next)
	}
	v.next = got + 1
}
