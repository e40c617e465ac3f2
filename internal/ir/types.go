package ir

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PrimitiveType is the storage type of a scalar entity field.
type PrimitiveType string

const (
	TypeInteger  PrimitiveType = "integer"
	TypeFloat    PrimitiveType = "float"
	TypeDecimal  PrimitiveType = "decimal"
	TypeDatetime PrimitiveType = "datetime"
	TypeString   PrimitiveType = "string"
	TypeText     PrimitiveType = "text"
	TypeBoolean  PrimitiveType = "boolean"
)

// ValidPrimitiveTypes defines the types a schema may declare.
var ValidPrimitiveTypes = map[PrimitiveType]bool{
	TypeInteger:  true,
	TypeFloat:    true,
	TypeDecimal:  true,
	TypeDatetime: true,
	TypeString:   true,
	TypeText:     true,
	TypeBoolean:  true,
}

// IDField is the implicit primary key column present on every entity.
const IDField = "id"

// RelationKind distinguishes to-one from to-many associations.
type RelationKind string

const (
	// RelationOne stores the foreign key on the owning entity as <name>_id.
	RelationOne RelationKind = "one"

	// RelationMany stores the foreign key on the target entity as <mapped_by>_id.
	RelationMany RelationKind = "many"
)

// ValidRelationKinds defines allowed relation kinds.
var ValidRelationKinds = map[RelationKind]bool{
	RelationOne:  true,
	RelationMany: true,
}

// Field is a scalar field of an entity.
type Field struct {
	Name string        `json:"name"`
	Type PrimitiveType `json:"type"`
}

// Relation is a named association to another entity.
type Relation struct {
	Name     string       `json:"name"`
	Target   string       `json:"target"`
	Kind     RelationKind `json:"kind"`
	MappedBy string       `json:"mapped_by,omitempty"` // many only: relation name on the target
}

// ForeignKey returns the column holding the association's key.
// For RelationOne the column lives on the owner, for RelationMany on the target.
func (r Relation) ForeignKey() string {
	if r.Kind == RelationMany {
		return r.MappedBy + "_id"
	}
	return r.Name + "_id"
}

// EntityDescriptor describes a record type: its scalar fields and its
// relations, both in declaration order.
type EntityDescriptor struct {
	Name      string     `json:"name"`
	Table     string     `json:"table"`
	Fields    []Field    `json:"fields"`
	Relations []Relation `json:"relations"`
}

// Alias returns the conventional query alias for the entity: its type name
// with any namespace prefix stripped, lower-cased.
//
// Example: `\App\Entity\StdClass` -> "stdclass".
func (d EntityDescriptor) Alias() string {
	return AliasOf(d.Name)
}

// AliasOf computes the alias for a bare or namespaced type name.
// A Caser is not safe for concurrent use, so one is built per call.
func AliasOf(name string) string {
	if i := strings.LastIndexAny(name, `\./`); i >= 0 {
		name = name[i+1:]
	}
	return cases.Lower(language.Und).String(name)
}

// TableName returns Table, defaulting to the alias.
func (d EntityDescriptor) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return d.Alias()
}

// Field looks up a scalar field by name.
// The implicit id column always resolves to TypeInteger.
func (d EntityDescriptor) Field(name string) (Field, bool) {
	if name == IDField {
		return Field{Name: IDField, Type: TypeInteger}, true
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation looks up a relation by field name.
func (d EntityDescriptor) Relation(name string) (Relation, bool) {
	for _, r := range d.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// Columns returns every stored column in order: id, scalar fields, then
// foreign keys for to-one relations.
func (d EntityDescriptor) Columns() []string {
	cols := make([]string, 0, 1+len(d.Fields)+len(d.Relations))
	cols = append(cols, IDField)
	for _, f := range d.Fields {
		cols = append(cols, f.Name)
	}
	for _, r := range d.Relations {
		if r.Kind == RelationOne {
			cols = append(cols, r.ForeignKey())
		}
	}
	return cols
}

// Catalog indexes descriptors by entity name.
type Catalog map[string]EntityDescriptor

// NewCatalog builds a Catalog from descriptors.
func NewCatalog(descs ...EntityDescriptor) Catalog {
	c := make(Catalog, len(descs))
	for _, d := range descs {
		c[d.Name] = d
	}
	return c
}

// Lookup finds a descriptor by entity name.
func (c Catalog) Lookup(name string) (EntityDescriptor, bool) {
	d, ok := c[name]
	return d, ok
}
