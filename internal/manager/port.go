package manager

import (
	"context"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// Port is the persistence boundary a Manager drives.
//
// Implementations own the unit of work: Persist and Remove stage changes,
// Commit makes them durable and Rollback discards them. FindByID reports absence with found=false,
// not with an error.
type Port[T any] interface {
	// Describe returns the managed entity's descriptor.
	Describe(ctx context.Context) (ir.EntityDescriptor, error)

	// Catalog returns every descriptor the port knows, keyed by entity name.
	// Relation targets are looked up here.
	Catalog(ctx context.Context) (map[string]ir.EntityDescriptor, error)

	// New returns a blank instance of the managed entity.
	New() T

	FindByID(ctx context.Context, id int64) (T, bool, error)
	FindAll(ctx context.Context) ([]T, error)
	FindByEquality(ctx context.Context, criteria map[string]any) ([]T, error)

	// Execute runs a compiled query and returns the matching root records.
	Execute(ctx context.Context, q queryir.Query) ([]T, error)

	Persist(ctx context.Context, entity T) error
	Remove(ctx context.Context, entity T) error
	Commit(ctx context.Context) error

	// Rollback discards staged changes. It is a no-op when nothing is staged.
	Rollback(ctx context.Context) error
}

// Binder assigns caller-supplied data onto an entity.
type Binder[T any] interface {
	Bind(entity T, data map[string]any) (T, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc[T any] func(entity T, data map[string]any) (T, error)

// Bind calls f(entity, data).
func (f BinderFunc[T]) Bind(entity T, data map[string]any) (T, error) {
	return f(entity, data)
}

// Value returns data[key] when present and of type V, else def.
//
// Example:
//
//	title := manager.Value(data, "title", "untitled")
func Value[V any](data map[string]any, key string, def V) V {
	raw, ok := data[key]
	if !ok {
		return def
	}
	v, ok := raw.(V)
	if !ok {
		return def
	}
	return v
}
