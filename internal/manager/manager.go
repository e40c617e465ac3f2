package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/planner"
	"github.com/roach88/recman/internal/queryir"
)

// Manager provides CRUD and filtered reads for one entity type.
//
// Thread-safety: a Manager holds no per-call state. The join skeleton is
// built once in New and every filtered read compiles into a clone of it,
// so concurrent calls are safe as far as the port allows.
type Manager[T any] struct {
	port    Port[T]
	binder  Binder[T]
	desc    ir.EntityDescriptor
	catalog ir.Catalog
	base    queryir.Query // read-only after New
	logger  *slog.Logger
	traces  TraceGenerator
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger *slog.Logger
	traces TraceGenerator
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTraceGenerator sets the per-operation trace id source.
// Default: UUIDv7Generator.
func WithTraceGenerator(g TraceGenerator) Option {
	return func(o *options) {
		o.traces = g
	}
}

// New describes the managed entity through port and builds its join skeleton.
func New[T any](ctx context.Context, port Port[T], binder Binder[T], opts ...Option) (*Manager[T], error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		traces: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	desc, err := port.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("manager: describe: %w", err)
	}
	descs, err := port.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("manager: catalog %s: %w", desc.Name, err)
	}

	catalog := make(ir.Catalog, len(descs)+1)
	for name, d := range descs {
		catalog[name] = d
	}
	catalog[desc.Name] = desc

	return &Manager[T]{
		port:    port,
		binder:  binder,
		desc:    desc,
		catalog: catalog,
		base:    planner.BuildBaseQuery(desc),
		logger:  o.logger.With("entity", desc.Name),
		traces:  o.traces,
	}, nil
}

// Descriptor returns the managed entity's descriptor.
func (m *Manager[T]) Descriptor() ir.EntityDescriptor {
	return m.desc
}

// Catalog returns the descriptors used to resolve relation paths.
func (m *Manager[T]) Catalog() ir.Catalog {
	return m.catalog
}

func (m *Manager[T]) trace(op string) *slog.Logger {
	return m.logger.With("op", op, "trace_id", m.traces.Generate())
}

// Create binds data onto a blank entity, persists it and commits.
func (m *Manager[T]) Create(ctx context.Context, data map[string]any) (T, error) {
	log := m.trace("create")

	entity, err := m.binder.Bind(m.port.New(), data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("manager: create %s: bind: %w", m.desc.Name, err)
	}
	if err := m.persist(ctx, log, entity); err != nil {
		var zero T
		return zero, fmt.Errorf("manager: create %s: %w", m.desc.Name, err)
	}

	log.Info("record created")
	return entity, nil
}

// Read fetches one entity by primary key.
// Returns an Error of KindResourceNotFound when id does not exist.
func (m *Manager[T]) Read(ctx context.Context, id int64) (T, error) {
	m.trace("read").Debug("reading record", "id", id)
	return m.read(ctx, id)
}

func (m *Manager[T]) read(ctx context.Context, id int64) (T, error) {
	entity, found, err := m.port.FindByID(ctx, id)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("manager: read %s %d: %w", m.desc.Name, id, err)
	}
	if !found {
		var zero T
		return zero, NewNotFoundError(m.desc.Name, id)
	}
	return entity, nil
}

// ReadAll returns every entity of the managed type.
func (m *Manager[T]) ReadAll(ctx context.Context) ([]T, error) {
	m.trace("read_all").Debug("reading all records")

	out, err := m.port.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("manager: read all %s: %w", m.desc.Name, err)
	}
	return out, nil
}

// ReadBy returns entities whose columns equal criteria exactly.
// No type inference and no joins; keys must be stored columns.
func (m *Manager[T]) ReadBy(ctx context.Context, criteria map[string]any) ([]T, error) {
	m.trace("read_by").Debug("reading records by equality", "criteria", len(criteria))

	columns := make(map[string]bool)
	for _, c := range m.desc.Columns() {
		columns[c] = true
	}
	for key := range criteria {
		if !columns[key] {
			return nil, NewUnknownFieldError(m.desc.Name, key)
		}
	}

	out, err := m.port.FindByEquality(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("manager: read by %s: %w", m.desc.Name, err)
	}
	return out, nil
}

// Query compiles filters without executing them.
func (m *Manager[T]) Query(filters *ir.FilterMap) (queryir.Query, error) {
	q, err := planner.Compile(m.base, m.desc, m.catalog, filters)
	if err != nil {
		return queryir.Query{}, fromPlanner(m.desc.Name, err)
	}
	return q, nil
}

// Compile compiles filters for desc without a port. Errors are classified
// the same way as Manager.Query.
func Compile(desc ir.EntityDescriptor, catalog ir.Catalog, filters *ir.FilterMap) (queryir.Query, error) {
	q, err := planner.Compile(planner.BuildBaseQuery(desc), desc, catalog, filters)
	if err != nil {
		return queryir.Query{}, fromPlanner(desc.Name, err)
	}
	return q, nil
}

// ReadByRecursively compiles filters against the join skeleton and runs the
// result. An empty result is not an error. Nothing reaches the port when
// compilation fails.
func (m *Manager[T]) ReadByRecursively(ctx context.Context, filters *ir.FilterMap) ([]T, error) {
	log := m.trace("read_by_recursively")

	q, err := m.Query(filters)
	if err != nil {
		log.Debug("filter compilation failed", "error", err)
		return nil, err
	}
	log.Debug("filter compiled", "query", q.DQL(), "params", len(q.Params))

	out, err := m.port.Execute(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("manager: query %s: %w", m.desc.Name, err)
	}
	return out, nil
}

// Update reads id, binds data onto it, persists and commits.
func (m *Manager[T]) Update(ctx context.Context, id int64, data map[string]any) (T, error) {
	log := m.trace("update")

	entity, err := m.read(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	entity, err = m.binder.Bind(entity, data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("manager: update %s %d: bind: %w", m.desc.Name, id, err)
	}
	if err := m.persist(ctx, log, entity); err != nil {
		var zero T
		return zero, fmt.Errorf("manager: update %s %d: %w", m.desc.Name, id, err)
	}

	log.Info("record updated", "id", id)
	return entity, nil
}

// Delete reads id, removes it and commits. Returns the deleted id.
func (m *Manager[T]) Delete(ctx context.Context, id int64) (int64, error) {
	log := m.trace("delete")

	entity, err := m.read(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := m.port.Remove(ctx, entity); err != nil {
		return 0, fmt.Errorf("manager: delete %s %d: %w", m.desc.Name, id, m.rollback(ctx, log, err))
	}
	if err := m.port.Commit(ctx); err != nil {
		return 0, fmt.Errorf("manager: delete %s %d: %w", m.desc.Name, id, m.rollback(ctx, log, fmt.Errorf("commit: %w", err)))
	}

	log.Info("record deleted", "id", id)
	return id, nil
}

func (m *Manager[T]) persist(ctx context.Context, log *slog.Logger, entity T) error {
	if err := m.port.Persist(ctx, entity); err != nil {
		return m.rollback(ctx, log, err)
	}
	if err := m.port.Commit(ctx); err != nil {
		return m.rollback(ctx, log, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// rollback discards the unit of work after a failed write so the port is
// usable again. cause is returned, joined with any rollback failure.
func (m *Manager[T]) rollback(ctx context.Context, log *slog.Logger, cause error) error {
	if err := m.port.Rollback(ctx); err != nil {
		log.Error("rollback failed", "error", err)
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	log.Warn("write rolled back", "error", cause)
	return cause
}
