package manager

import (
	"fmt"

	"github.com/roach88/recman/internal/ir"
)

// RecordBinder binds map data onto ir.Record using the entity descriptor.
//
// Each declared field present in data is coerced to its primitive type.
// To-one relations bind their foreign key column (<relation>_id). Unknown
// keys are ignored and id is never bound.
type RecordBinder struct {
	desc ir.EntityDescriptor
}

// NewRecordBinder creates a binder for desc.
func NewRecordBinder(desc ir.EntityDescriptor) RecordBinder {
	return RecordBinder{desc: desc}
}

// Bind implements Binder[ir.Record].
func (b RecordBinder) Bind(r ir.Record, data map[string]any) (ir.Record, error) {
	if r == nil {
		r = ir.NewRecord()
	}

	for _, f := range b.desc.Fields {
		raw, ok := data[f.Name]
		if !ok {
			continue
		}
		v, err := ir.Coerce(f.Type, raw)
		if err != nil {
			return r, fmt.Errorf("field %s: %w", f.Name, err)
		}
		r[f.Name] = v
	}

	for _, rel := range b.desc.Relations {
		if rel.Kind != ir.RelationOne {
			continue
		}
		col := rel.ForeignKey()
		raw, ok := data[col]
		if !ok {
			continue
		}
		v, err := ir.Coerce(ir.TypeInteger, raw)
		if err != nil {
			return r, fmt.Errorf("relation %s: %w", rel.Name, err)
		}
		r[col] = v
	}

	return r, nil
}
