package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/recman/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownFieldType    = "E201" // field type is not a primitive type
	ErrDuplicateName       = "E202" // duplicate field/relation/column name
	ErrUnknownTarget       = "E203" // relation target not in catalog
	ErrInvalidRelationKind = "E204" // relation kind is not one|many
	ErrMissingMappedBy     = "E205" // many relation without mapped_by
	ErrReservedName        = "E206" // field or relation named id
	ErrInvalidIdentifier   = "E207" // name or table is not a plain identifier
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Entity, e.Field, e.Message)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a descriptor against schema rules. Relation targets are
// looked up in catalog. Returns all errors found (does not fail-fast).
func Validate(desc ir.EntityDescriptor, catalog ir.Catalog) []ValidationError {
	v := &validator{entity: desc.Name}

	if !identPattern.MatchString(desc.TableName()) {
		v.add("table", ErrInvalidIdentifier, "table %q is not a plain identifier", desc.TableName())
	}

	// columns tracks every stored column name, so a field cannot shadow a
	// relation's foreign key.
	columns := map[string]string{}
	names := map[string]bool{}

	for i, f := range desc.Fields {
		field := fmt.Sprintf("fields[%d]", i)
		v.checkName(field, f.Name, names)
		if !ir.ValidPrimitiveTypes[f.Type] {
			v.add(field, ErrUnknownFieldType, "field %q has unknown type %q", f.Name, f.Type)
		}
		columns[f.Name] = "field " + f.Name
	}

	for i, r := range desc.Relations {
		field := fmt.Sprintf("relations[%d]", i)
		v.checkName(field, r.Name, names)

		if !ir.ValidRelationKinds[r.Kind] {
			v.add(field, ErrInvalidRelationKind, "relation %q has invalid kind %q: must be one or many", r.Name, r.Kind)
		}
		if r.Kind == ir.RelationMany && r.MappedBy == "" {
			v.add(field, ErrMissingMappedBy, "many relation %q requires mapped_by", r.Name)
		}
		if _, ok := catalog.Lookup(r.Target); !ok && r.Target != desc.Name {
			v.add(field, ErrUnknownTarget, "relation %q targets undescribed entity %q", r.Name, r.Target)
		}

		if r.Kind == ir.RelationOne {
			fk := r.ForeignKey()
			if owner, ok := columns[fk]; ok {
				v.add(field, ErrDuplicateName, "foreign key %q of relation %q collides with %s", fk, r.Name, owner)
			}
			columns[fk] = "relation " + r.Name
		}
	}

	return v.errs
}

// validator accumulates errors for one entity.
type validator struct {
	entity string
	errs   []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Entity:  v.entity,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) checkName(field, name string, seen map[string]bool) {
	switch {
	case name == ir.IDField:
		v.add(field, ErrReservedName, "%q is reserved for the primary key", name)
	case !identPattern.MatchString(name):
		v.add(field, ErrInvalidIdentifier, "name %q is not a plain identifier", name)
	}
	if seen[name] {
		v.add(field, ErrDuplicateName, "duplicate name %q", name)
	}
	seen[name] = true
}

// ValidateCatalog validates every descriptor in catalog, in name order.
func ValidateCatalog(catalog ir.Catalog) []ValidationError {
	var errs []ValidationError
	for _, name := range sortedNames(catalog) {
		errs = append(errs, Validate(catalog[name], catalog)...)
	}
	return errs
}
