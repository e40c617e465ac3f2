package queryir

import "strings"

// Condition renders the clause list without the leading WHERE keyword.
//
// Clauses fold from the left: each AND or OR applies to everything before
// it. SQL binds AND tighter than OR, so an AND that follows an OR wraps the
// preceding text in parentheses:
//
//	a AND b OR c AND d  ->  (a AND b OR c) AND d
//
// An OR never needs a wrap, so queries whose OR clauses come last render flat.
func (q Query) Condition(render func(Predicate) (string, error)) (string, error) {
	var b strings.Builder
	pendingOr := false
	for i, c := range q.Clauses {
		pred, err := render(c.Predicate)
		if err != nil {
			return "", err
		}
		if i == 0 {
			b.WriteString(pred)
			continue
		}

		if c.Combinator == CombinatorOr {
			pendingOr = true
		} else if pendingOr {
			wrapped := "(" + b.String() + ")"
			b.Reset()
			b.WriteString(wrapped)
			pendingOr = false
		}
		b.WriteByte(' ')
		b.WriteString(string(c.Combinator))
		b.WriteByte(' ')
		b.WriteString(pred)
	}
	return b.String(), nil
}

// Match evaluates the clause list with the same left fold as Condition.
// An empty clause list matches. Every predicate is evaluated so that errors
// surface regardless of short-circuiting.
func (q Query) Match(eval func(Predicate) (bool, error)) (bool, error) {
	matched := true
	for i, c := range q.Clauses {
		ok, err := eval(c.Predicate)
		if err != nil {
			return false, err
		}
		switch {
		case i == 0:
			matched = ok
		case c.Combinator == CombinatorOr:
			matched = matched || ok
		default:
			matched = matched && ok
		}
	}
	return matched, nil
}
