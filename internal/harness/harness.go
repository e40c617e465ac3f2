package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/recman/internal/compiler"
	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/manager"
	"github.com/roach88/recman/internal/store"
	"github.com/roach88/recman/internal/testutil"
)

// Harness is the scenario execution engine.
// It owns one store and one manager per entity touched.
type Harness struct {
	store    *store.Store
	catalog  ir.Catalog
	managers map[string]*manager.Manager[ir.Record]
	traces   *testutil.FixedTraceGenerator
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the scenario's CUE schema files
// 2. Open an in-memory store with a table per entity
// 3. Execute setup steps (must succeed)
// 4. Execute steps, checking each expect clause
// 5. Evaluate assertions and return the result
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with manager logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	catalog, err := compiler.LoadFiles(scenario.Schemas...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}

	st, err := store.Open(":memory:", catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		catalog:  catalog,
		managers: make(map[string]*manager.Manager[ir.Record]),
		traces:   testutil.NewFixedTraceGenerator(scenario.TraceID),
		logger:   logger,
	}

	ctx := context.Background()

	if err := h.executeSetup(ctx, scenario.Entity, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, scenario.Entity, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// manager returns the manager for entity, creating it on first use.
func (h *Harness) manager(ctx context.Context, entity string) (*manager.Manager[ir.Record], error) {
	if m, ok := h.managers[entity]; ok {
		return m, nil
	}
	tbl, err := h.store.Table(entity)
	if err != nil {
		return nil, err
	}
	desc, _ := h.catalog.Lookup(entity)
	m, err := manager.New[ir.Record](ctx, tbl, manager.NewRecordBinder(desc),
		manager.WithLogger(h.logger),
		manager.WithTraceGenerator(h.traces),
	)
	if err != nil {
		return nil, err
	}
	h.managers[entity] = m
	return m, nil
}

func (h *Harness) executeSetup(ctx context.Context, defaultEntity string, steps []SetupStep) error {
	for i, st := range steps {
		entity := firstNonEmpty(st.Entity, defaultEntity)
		m, err := h.manager(ctx, entity)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if _, err := m.Create(ctx, st.Data); err != nil {
			return fmt.Errorf("setup[%d]: create %s: %w", i, entity, err)
		}
	}
	return nil
}

// executeStep runs one step, records it in the trace and checks its expect
// clause. Only harness failures (unknown entity) are returned as errors;
// manager errors are outcomes.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, defaultEntity string, result *Result) error {
	entity := firstNonEmpty(step.Entity, defaultEntity)
	m, err := h.manager(ctx, entity)
	if err != nil {
		return err
	}

	ev := TraceEvent{Op: step.Op, Entity: entity, ID: step.ID}
	var (
		records []ir.Record
		opErr   error
	)

	switch step.Op {
	case OpCreate:
		var r ir.Record
		r, opErr = m.Create(ctx, step.Data)
		records = single(r, opErr)
	case OpRead:
		var r ir.Record
		r, opErr = m.Read(ctx, step.ID)
		records = single(r, opErr)
	case OpUpdate:
		var r ir.Record
		r, opErr = m.Update(ctx, step.ID, step.Data)
		records = single(r, opErr)
	case OpDelete:
		_, opErr = m.Delete(ctx, step.ID)
	case OpList:
		records, opErr = m.ReadAll(ctx)
	case OpFind:
		records, opErr = m.ReadBy(ctx, step.Criteria)
	case OpQuery, OpCompile:
		q, err := m.Query(step.Filter)
		if err == nil {
			ev.Query = q.DQL()
			ev.Params = q.Params
			ev.MaxResults = q.MaxResults
		}
		if step.Op == OpCompile {
			opErr = err
			break
		}
		records, opErr = m.ReadByRecursively(ctx, step.Filter)
	}

	ev.Count = len(records)
	for _, r := range records {
		if id, ok := r.ID(); ok {
			ev.IDs = append(ev.IDs, id)
		}
	}
	if opErr != nil {
		ev.Error = errorCode(opErr)
	}
	result.AddTrace(ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step, ev, records, opErr) {
			result.AddError(msg)
		}
	} else if opErr != nil {
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, opErr))
	}
	return nil
}

func single(r ir.Record, err error) []ir.Record {
	if err != nil || r == nil {
		return nil
	}
	return []ir.Record{r}
}

// errorCode returns the manager error kind, or ERROR for unclassified failures.
func errorCode(err error) string {
	if k := manager.KindOf(err); k != "" {
		return string(k)
	}
	return "ERROR"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
