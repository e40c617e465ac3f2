package queryir

import (
	"fmt"
	"strings"
)

// DQL renders the query in object-query form, with relation paths instead of
// join conditions and zero-based `?i` placeholders:
//
//	SELECT article, author FROM Article article LEFT JOIN article.author author
//	WHERE article.title LIKE ?0 ORDER BY article.views DESC
//
// The limit is not part of the text; read MaxResults.
// The output is deterministic and is what golden files snapshot.
func (q Query) DQL() string {
	var b strings.Builder

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Select, ", "))
	fmt.Fprintf(&b, " FROM %s %s", q.Entity, q.Alias)

	for _, j := range q.Joins {
		fmt.Fprintf(&b, " %s JOIN %s %s", j.Kind, j.Path, j.Alias)
	}

	if len(q.Clauses) > 0 {
		cond, _ := q.Condition(func(p Predicate) (string, error) {
			return predicateDQL(p), nil
		})
		b.WriteString(" WHERE ")
		b.WriteString(cond)
	}

	if q.OrderBy != nil {
		fmt.Fprintf(&b, " ORDER BY %s %s", q.OrderBy.Field, q.OrderBy.Direction)
	}

	return b.String()
}

func predicateDQL(p Predicate) string {
	switch p := p.(type) {
	case Comparison:
		return fmt.Sprintf("%s %s ?%d", p.Field, p.Op, p.Index)
	case Range:
		return fmt.Sprintf("(%s >= ?%d AND %s <= ?%d)", p.Field, p.Start, p.Field, p.End)
	default:
		return fmt.Sprintf("<%T>", p)
	}
}
