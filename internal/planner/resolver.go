package planner

import (
	"github.com/roach88/recman/internal/ir"
)

// Resolve looks up the field a path names and returns it together with the
// path qualified by the alias it will be rendered under.
//
// An unqualified path, or one whose first segment is the root alias, is
// looked up on root. Otherwise the first segment must name a relation of
// root, and the field is looked up on that relation's target descriptor in
// catalog. The implicit id column resolves everywhere.
func Resolve(root ir.EntityDescriptor, path ir.FieldPath, catalog ir.Catalog) (ir.Field, ir.FieldPath, error) {
	alias := root.Alias()

	if !path.Qualified() || path.Relation == alias {
		f, ok := root.Field(path.Field)
		if !ok {
			return ir.Field{}, path, newError(path.String(), ErrUnknownField, "column does not exist on %s", root.Name)
		}
		return f, path.Qualify(alias), nil
	}

	rel, ok := root.Relation(path.Relation)
	if !ok {
		return ir.Field{}, path, newError(path.String(), ErrUnknownField, "table does not exist")
	}

	target, ok := catalog.Lookup(rel.Target)
	if !ok {
		return ir.Field{}, path, newError(path.String(), ErrUnknownField, "relation target %s is not described", rel.Target)
	}

	f, ok := target.Field(path.Field)
	if !ok {
		return ir.Field{}, path, newError(path.String(), ErrUnknownField, "column does not exist on %s", target.Name)
	}
	return f, path, nil
}

// ResolveType parses key and returns the primitive type of the field it names.
func ResolveType(root ir.EntityDescriptor, key string, catalog ir.Catalog) (ir.PrimitiveType, error) {
	path, err := ir.ParsePath(key)
	if err != nil {
		return "", &Error{Key: key, Detail: err.Error(), Err: ErrUnknownField}
	}
	f, _, err := Resolve(root, path, catalog)
	if err != nil {
		return "", err
	}
	return f.Type, nil
}
