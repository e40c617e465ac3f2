package pgstore

import (
	"context"
	"fmt"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
	"github.com/roach88/recman/internal/queryir"
)

// Table is the persistence port for one entity.
type Table struct {
	store *Store
	desc  ir.EntityDescriptor
}

var _ manager.Port[ir.Record] = (*Table)(nil)

// Describe returns the entity descriptor.
func (t *Table) Describe(ctx context.Context) (ir.EntityDescriptor, error) {
	return t.desc, nil
}

// Catalog returns every descriptor in the store.
func (t *Table) Catalog(ctx context.Context) (map[string]ir.EntityDescriptor, error) {
	out := make(map[string]ir.EntityDescriptor, len(t.store.catalog))
	for k, v := range t.store.catalog {
		out[k] = v
	}
	return out, nil
}

// New returns an empty record.
func (t *Table) New() ir.Record {
	return ir.NewRecord()
}

// FindByID returns the record with the given id.
func (t *Table) FindByID(ctx context.Context, id int64) (ir.Record, bool, error) {
	rs, err := t.FindByEquality(ctx, map[string]any{ir.IDField: id})
	if err != nil {
		return nil, false, err
	}
	if len(rs) == 0 {
		return nil, false, nil
	}
	return rs[0], true, nil
}

// FindAll returns every record in id order.
func (t *Table) FindAll(ctx context.Context) ([]ir.Record, error) {
	return t.FindByEquality(ctx, nil)
}

// FindByEquality returns records whose columns equal criteria exactly.
func (t *Table) FindByEquality(ctx context.Context, criteria map[string]any) ([]ir.Record, error) {
	sql, args, err := t.store.compiler.CompileEquality(t.desc, criteria)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", t.desc.Name, err)
	}
	return t.query(ctx, sql, args)
}

// Execute runs a compiled query and returns the distinct root records.
func (t *Table) Execute(ctx context.Context, q queryir.Query) ([]ir.Record, error) {
	sql, args, err := t.store.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", t.desc.Name, err)
	}
	return t.query(ctx, sql, args)
}

func (t *Table) query(ctx context.Context, sql string, args []any) ([]ir.Record, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rows, err := t.store.reader().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.desc.Name, err)
	}
	defer rows.Close()

	names := make([]string, 0, len(rows.FieldDescriptions()))
	for _, fd := range rows.FieldDescriptions() {
		names = append(names, fd.Name)
	}

	out := []ir.Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", t.desc.Name, err)
		}
		r, err := decodeRow(t.desc, names, values)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", t.desc.Name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: iterate rows: %w", t.desc.Name, err)
	}
	return out, nil
}

// Persist inserts r when it has no id (and assigns the returned one), or
// updates the stored row otherwise. The write is staged until Commit.
func (t *Table) Persist(ctx context.Context, r ir.Record) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	w, err := t.store.writer(ctx)
	if err != nil {
		return fmt.Errorf("persist %s: %w", t.desc.Name, err)
	}

	if _, ok := r.ID(); ok {
		sql, args, err := t.store.compiler.CompileUpdate(t.desc, r)
		if err != nil {
			return fmt.Errorf("persist %s: %w", t.desc.Name, err)
		}
		if _, err := w.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("persist %s: update: %w", t.desc.Name, err)
		}
		return nil
	}

	sql, args, err := t.store.compiler.CompileInsert(t.desc, r)
	if err != nil {
		return fmt.Errorf("persist %s: %w", t.desc.Name, err)
	}
	var id int64
	if err := w.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return fmt.Errorf("persist %s: insert: %w", t.desc.Name, err)
	}
	r.SetID(id)
	return nil
}

// Remove deletes r by id. The delete is staged until Commit.
func (t *Table) Remove(ctx context.Context, r ir.Record) error {
	id, ok := r.ID()
	if !ok {
		return fmt.Errorf("remove %s: record has no id", t.desc.Name)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	w, err := t.store.writer(ctx)
	if err != nil {
		return fmt.Errorf("remove %s: %w", t.desc.Name, err)
	}
	sql, args, err := t.store.compiler.CompileDelete(t.desc, id)
	if err != nil {
		return fmt.Errorf("remove %s: %w", t.desc.Name, err)
	}
	if _, err := w.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("remove %s: %w", t.desc.Name, err)
	}
	return nil
}

// Commit commits the store's unit of work.
func (t *Table) Commit(ctx context.Context) error {
	return t.store.Commit(ctx)
}

// Rollback implements manager.Port by discarding the store's unit of work.
func (t *Table) Rollback(ctx context.Context) error {
	return t.store.Rollback(ctx)
}
