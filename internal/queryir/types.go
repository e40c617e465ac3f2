package queryir

import (
	"strings"

	"github.com/roach88/recman/internal/ir"
)

// Combinator joins a clause to the clauses before it.
type Combinator string

const (
	CombinatorWhere Combinator = "WHERE"
	CombinatorAnd   Combinator = "AND"
	CombinatorOr    Combinator = "OR"
)

// Operator is a binary comparison operator.
type Operator string

const (
	OpEq   Operator = "="
	OpLike Operator = "LIKE"
	OpGte  Operator = ">="
	OpLte  Operator = "<="
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection normalizes a caller-supplied direction. Case is ignored.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Asc:
		return Asc, true
	case Desc:
		return Desc, true
	default:
		return "", false
	}
}

// JoinKind is the kind of join. Only left joins are generated.
type JoinKind string

const JoinLeft JoinKind = "LEFT"

// Predicate is a single filter condition.
//
// This is a sealed interface - only Comparison and Range implement it.
type Predicate interface {
	predicateNode()

	// Placeholders returns the parameter indices the predicate consumes, in order.
	Placeholders() []int
}

// Comparison is `<field> <op> ?<index>`.
type Comparison struct {
	Field ir.FieldPath
	Op    Operator
	Index int
}

func (Comparison) predicateNode() {}

// Placeholders implements Predicate.
func (c Comparison) Placeholders() []int { return []int{c.Index} }

// Range is the fixed closed-interval shape `(<field> >= ?<start> AND <field> <= ?<end>)`.
// Start and End are always consecutive.
type Range struct {
	Field ir.FieldPath
	Start int
	End   int
}

func (Range) predicateNode() {}

// Placeholders implements Predicate.
func (r Range) Placeholders() []int { return []int{r.Start, r.End} }

// Clause is a predicate with its combinator.
type Clause struct {
	Combinator Combinator
	Predicate  Predicate
}

// Join is a left join from the root alias to one of its relations.
type Join struct {
	Kind     JoinKind
	Path     ir.FieldPath // root alias + relation name, e.g. article.author
	Alias    string       // the relation name itself
	Relation ir.Relation
}

// OrderBy is a single ordering term.
type OrderBy struct {
	Field     ir.FieldPath
	Direction Direction
}

// Query is a compiled, parameterized, join-aware query against one root entity.
type Query struct {
	Entity     string   // root entity name
	Table      string   // root table
	Alias      string   // root alias
	Select     []string // root alias first, then relation aliases
	Joins      []Join
	Clauses    []Clause
	OrderBy    *OrderBy
	MaxResults *int
	Params     []any // bound values in placeholder order
}

// Clone returns a deep copy, so compiling into the clone leaves the receiver untouched.
func (q Query) Clone() Query {
	out := q
	out.Select = append([]string(nil), q.Select...)
	out.Joins = append([]Join(nil), q.Joins...)
	out.Clauses = append([]Clause(nil), q.Clauses...)
	out.Params = append([]any(nil), q.Params...)
	if q.OrderBy != nil {
		ob := *q.OrderBy
		out.OrderBy = &ob
	}
	if q.MaxResults != nil {
		n := *q.MaxResults
		out.MaxResults = &n
	}
	return out
}

// NextPlaceholder returns the index the next predicate would use.
func (q Query) NextPlaceholder() int {
	next := 0
	for _, c := range q.Clauses {
		if idx := c.Predicate.Placeholders(); len(idx) > 0 {
			next = idx[len(idx)-1] + 1
		}
	}
	return next
}

// AddClause appends a predicate. The first clause always gets
// CombinatorWhere; later ones get AND unless or is set.
func (q *Query) AddClause(p Predicate, or bool) {
	comb := CombinatorAnd
	switch {
	case len(q.Clauses) == 0:
		comb = CombinatorWhere
	case or:
		comb = CombinatorOr
	}
	q.Clauses = append(q.Clauses, Clause{Combinator: comb, Predicate: p})
}

// SetMaxResults sets the result limit.
func (q *Query) SetMaxResults(n int) {
	q.MaxResults = &n
}
