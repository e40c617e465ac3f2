package planner

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// Compile appends the predicates, ordering and limit described by filters
// to a clone of base and returns the clone. base is left untouched.
//
// Entries are processed in insertion order:
//
//   - orderBy: a one-entry map {field: ASC|DESC}. Consumes no placeholder.
//   - limit: an integer (or numeric string). Consumes no placeholder.
//   - anything else: a field predicate. The operator comes from the field's
//     primitive type; datetime fields take a {startDate, endDate} range.
//
// A string value starting with "|" is OR-combined with the preceding
// predicates; the prefix is stripped before binding. The first predicate
// is always WHERE.
func Compile(base queryir.Query, root ir.EntityDescriptor, catalog ir.Catalog, filters *ir.FilterMap) (queryir.Query, error) {
	q := base.Clone()

	for _, e := range filters.Entries() {
		value, or := splitOrPrefix(e.Value)

		switch e.Key {
		case ir.DirectiveOrderBy:
			ob, err := compileOrderBy(root, value)
			if err != nil {
				return queryir.Query{}, err
			}
			q.OrderBy = ob
			continue

		case ir.DirectiveLimit:
			n, err := toInt(value)
			if err != nil {
				return queryir.Query{}, newError(e.Key, ErrInvalidDirective, "limit %v is not an integer", value)
			}
			if n < 0 {
				return queryir.Query{}, newError(e.Key, ErrInvalidDirective, "limit %d is negative", n)
			}
			q.SetMaxResults(n)
			continue
		}

		path, err := ir.ParsePath(e.Key)
		if err != nil {
			return queryir.Query{}, &Error{Key: e.Key, Detail: err.Error(), Err: ErrUnknownField}
		}
		field, qualified, err := Resolve(root, path, catalog)
		if err != nil {
			return queryir.Query{}, err
		}

		pred, params, err := strategyFor(field.Type)(e.Key, qualified, value, q.NextPlaceholder())
		if err != nil {
			return queryir.Query{}, err
		}
		q.AddClause(pred, or)
		q.Params = append(q.Params, params...)
	}

	return q, nil
}

// splitOrPrefix strips the OR marker from string values.
func splitOrPrefix(v any) (any, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, ir.OrPrefix) {
		return v, false
	}
	return strings.TrimPrefix(s, ir.OrPrefix), true
}

func compileOrderBy(root ir.EntityDescriptor, value any) (*queryir.OrderBy, error) {
	m, ok := asFilterMap(value)
	if !ok || m.Len() != 1 {
		return nil, newError(ir.DirectiveOrderBy, ErrInvalidDirective, "expected a single {field: direction} entry")
	}
	entry := m.Entries()[0]

	raw, err := cast.ToStringE(entry.Value)
	if err != nil {
		return nil, newError(ir.DirectiveOrderBy, ErrInvalidDirective, "direction %v is not a string", entry.Value)
	}
	dir, ok := queryir.ParseDirection(raw)
	if !ok {
		return nil, newError(ir.DirectiveOrderBy, ErrInvalidDirective, "direction %q is not ASC or DESC", raw)
	}

	path, err := ir.ParsePath(entry.Key)
	if err != nil {
		return nil, &Error{Key: entry.Key, Detail: err.Error(), Err: ErrUnknownField}
	}
	// Sort columns are not type-checked, but the alias they hang off must exist.
	alias := root.Alias()
	if path.Qualified() && path.Relation != alias {
		if _, ok := root.Relation(path.Relation); !ok {
			return nil, newError(entry.Key, ErrUnknownField, "table does not exist")
		}
	}

	return &queryir.OrderBy{Field: path.Qualify(alias), Direction: dir}, nil
}
