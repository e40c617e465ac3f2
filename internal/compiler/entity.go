package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recman/internal/ir"
)

// CompileEntity parses a CUE value into an EntityDescriptor.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Article: { fields: { title: string } }`)
//	desc, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Article")))
//
// Fields and relations keep their declaration order. Type names are not
// checked here; Validate reports unknown ones.
func CompileEntity(v cue.Value) (*ir.EntityDescriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	desc := &ir.EntityDescriptor{}

	// Entity name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		desc.Name = selectorName(labels[len(labels)-1])
	}

	tableVal := v.LookupPath(cue.ParsePath("table"))
	if tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return nil, &CompileError{Field: "table", Message: "table must be a string", Pos: tableVal.Pos()}
		}
		desc.Table = table
	}

	var err error
	desc.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}

	desc.Relations, err = parseRelations(v)
	if err != nil {
		return nil, err
	}

	return desc, nil
}

// parseFields extracts scalar fields. A field is either a type name string
// ("datetime") or a CUE kind (int, float, bool, string).
func parseFields(v cue.Value) ([]ir.Field, error) {
	var fields []ir.Field

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return fields, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		t, err := extractTypeName(iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.Field{Name: selectorName(iter.Selector()), Type: t})
	}

	return fields, nil
}

// parseRelations extracts relation definitions. kind defaults to "one".
func parseRelations(v cue.Value) ([]ir.Relation, error) {
	var relations []ir.Relation

	relsVal := v.LookupPath(cue.ParsePath("relations"))
	if !relsVal.Exists() {
		return relations, nil
	}

	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := selectorName(iter.Selector())
		relVal := iter.Value()

		rel := ir.Relation{Name: name, Kind: ir.RelationOne}

		targetVal := relVal.LookupPath(cue.ParsePath("target"))
		if !targetVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("relations.%s.target", name),
				Message: "relation target is required",
				Pos:     relVal.Pos(),
			}
		}
		if rel.Target, err = targetVal.String(); err != nil {
			return nil, formatCUEError(err)
		}

		kindVal := relVal.LookupPath(cue.ParsePath("kind"))
		if kindVal.Exists() {
			kind, err := kindVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			rel.Kind = ir.RelationKind(kind)
		}

		mappedVal := relVal.LookupPath(cue.ParsePath("mapped_by"))
		if mappedVal.Exists() {
			if rel.MappedBy, err = mappedVal.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		relations = append(relations, rel)
	}

	return relations, nil
}

// selectorName returns a plain label for string selectors and the CUE form
// for anything else.
func selectorName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel && !sel.IsConstraint() {
		return sel.Unquoted()
	}
	return sel.String()
}

// extractTypeName converts a CUE field value to a primitive type.
func extractTypeName(v cue.Value) (ir.PrimitiveType, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return ir.PrimitiveType(s), nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInteger, nil
	case cue.FloatKind, cue.NumberKind:
		return ir.TypeFloat, nil
	case cue.BoolKind:
		return ir.TypeBoolean, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
