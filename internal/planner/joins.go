package planner

import (
	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// BuildBaseQuery builds the join skeleton for desc: the root alias followed
// by every relation in declaration order, each left-joined under its own name.
func BuildBaseQuery(desc ir.EntityDescriptor) queryir.Query {
	alias := desc.Alias()

	q := queryir.Query{
		Entity: desc.Name,
		Table:  desc.TableName(),
		Alias:  alias,
		Select: make([]string, 0, 1+len(desc.Relations)),
		Joins:  make([]queryir.Join, 0, len(desc.Relations)),
	}
	q.Select = append(q.Select, alias)

	for _, rel := range desc.Relations {
		q.Select = append(q.Select, rel.Name)
		q.Joins = append(q.Joins, queryir.Join{
			Kind:     queryir.JoinLeft,
			Path:     ir.FieldPath{Relation: alias, Field: rel.Name},
			Alias:    rel.Name,
			Relation: rel,
		})
	}

	return q
}
