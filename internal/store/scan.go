package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/recman/internal/ir"
)

// scanRecord reads the current row into a record holding desc's stored
// columns. Extra result columns (such as a relation sort key) are dropped.
func scanRecord(rows *sql.Rows, desc ir.EntityDescriptor) (ir.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	types := columnTypes(desc)
	r := ir.NewRecord()
	for i, col := range cols {
		t, ok := types[col]
		if !ok {
			continue
		}
		v, err := decodeValue(t, values[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", desc.Name, col, err)
		}
		r[col] = v
	}
	return r, nil
}

// columnTypes maps each stored column to the type its values decode as.
func columnTypes(desc ir.EntityDescriptor) map[string]ir.PrimitiveType {
	types := map[string]ir.PrimitiveType{ir.IDField: ir.TypeInteger}
	for _, f := range desc.Fields {
		types[f.Name] = f.Type
	}
	for _, rel := range desc.Relations {
		if rel.Kind == ir.RelationOne {
			types[rel.ForeignKey()] = ir.TypeInteger
		}
	}
	return types
}

// decodeValue normalizes a driver value to the Go type records carry.
func decodeValue(t ir.PrimitiveType, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return ir.Coerce(t, v)
}
