package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// MemoryDB is an in-memory database of ir.Records keyed by entity name.
// Ports obtained from Port share it, so relation joins see every table.
type MemoryDB struct {
	mu      sync.Mutex
	catalog ir.Catalog
	tables  map[string]map[int64]ir.Record
	seqs    map[string]*Sequence
}

// NewMemoryDB creates an empty database holding one table per descriptor.
func NewMemoryDB(descs ...ir.EntityDescriptor) *MemoryDB {
	db := &MemoryDB{
		catalog: ir.NewCatalog(descs...),
		tables:  make(map[string]map[int64]ir.Record),
		seqs:    make(map[string]*Sequence),
	}
	for _, d := range descs {
		db.tables[d.Name] = make(map[int64]ir.Record)
		db.seqs[d.Name] = &Sequence{}
	}
	return db
}

// Insert stores a committed record directly, assigning an id if it has none.
// Intended for seeding fixtures.
func (db *MemoryDB) Insert(entity string, r ir.Record) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	r = r.Clone()
	id, ok := r.ID()
	if !ok {
		id = db.seqs[entity].Next()
		r.SetID(id)
	} else {
		db.seqs[entity].Observe(id)
	}
	db.tables[entity][id] = r
	return id
}

// Len returns the number of committed records of entity.
func (db *MemoryDB) Len(entity string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.tables[entity])
}

// Port returns a persistence port for entity. It panics if entity is not described.
func (db *MemoryDB) Port(entity string) *MemoryPort {
	if _, ok := db.catalog[entity]; !ok {
		panic(fmt.Sprintf("testutil: no descriptor for %q", entity))
	}
	return &MemoryPort{db: db, entity: entity}
}

// snapshot returns committed records of entity in id order.
// Caller must hold db.mu.
func (db *MemoryDB) snapshot(entity string) []ir.Record {
	table := db.tables[entity]
	ids := make([]int64, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]ir.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, table[id])
	}
	return out
}

type stagedOp struct {
	remove bool
	record ir.Record
}

// MemoryPort implements manager.Port[ir.Record] over a MemoryDB.
//
// Persist and Remove are staged until Commit and dropped by Rollback. Reads
// see committed state only. Every port call is appended to Calls, which lets
// tests assert that nothing reached the port.
type MemoryPort struct {
	db     *MemoryDB
	entity string

	mu     sync.Mutex
	staged []stagedOp
	Calls  []string

	// Executed holds every query passed to Execute.
	Executed []queryir.Query

	// Fail makes the named write call (Persist, Remove, Commit or Rollback)
	// return the error without acting.
	Fail map[string]error
}

func (p *MemoryPort) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, call)
}

// failure records call and returns the error injected for it, if any.
func (p *MemoryPort) failure(call string) error {
	p.record(call)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Fail[call]
}

// Staged reports how many writes are waiting for Commit.
func (p *MemoryPort) Staged() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.staged)
}

// Describe implements manager.Port.
func (p *MemoryPort) Describe(ctx context.Context) (ir.EntityDescriptor, error) {
	p.record("Describe")
	return p.db.catalog[p.entity], nil
}

// Catalog implements manager.Port.
func (p *MemoryPort) Catalog(ctx context.Context) (map[string]ir.EntityDescriptor, error) {
	p.record("Catalog")
	out := make(map[string]ir.EntityDescriptor, len(p.db.catalog))
	for k, v := range p.db.catalog {
		out[k] = v
	}
	return out, nil
}

// New implements manager.Port.
func (p *MemoryPort) New() ir.Record {
	return ir.NewRecord()
}

// FindByID implements manager.Port.
func (p *MemoryPort) FindByID(ctx context.Context, id int64) (ir.Record, bool, error) {
	p.record("FindByID")
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	r, ok := p.db.tables[p.entity][id]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

// FindAll implements manager.Port.
func (p *MemoryPort) FindAll(ctx context.Context) ([]ir.Record, error) {
	p.record("FindAll")
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	return cloneAll(p.db.snapshot(p.entity)), nil
}

// FindByEquality implements manager.Port.
func (p *MemoryPort) FindByEquality(ctx context.Context, criteria map[string]any) ([]ir.Record, error) {
	p.record("FindByEquality")
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	out := []ir.Record{}
	for _, r := range p.db.snapshot(p.entity) {
		match := true
		for k, want := range criteria {
			if !equalValues(r[k], want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Execute implements manager.Port by evaluating q over the joined rows.
func (p *MemoryPort) Execute(ctx context.Context, q queryir.Query) ([]ir.Record, error) {
	p.record("Execute")
	p.mu.Lock()
	p.Executed = append(p.Executed, q)
	p.mu.Unlock()

	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	rows, err := p.db.joinRows(q)
	if err != nil {
		return nil, err
	}
	return evaluate(q, rows)
}

// Persist implements manager.Port. New records get their id immediately.
func (p *MemoryPort) Persist(ctx context.Context, r ir.Record) error {
	if err := p.failure("Persist"); err != nil {
		return err
	}
	if _, ok := r.ID(); !ok {
		r.SetID(p.db.seqs[p.entity].Next())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged = append(p.staged, stagedOp{record: r.Clone()})
	return nil
}

// Remove implements manager.Port.
func (p *MemoryPort) Remove(ctx context.Context, r ir.Record) error {
	if err := p.failure("Remove"); err != nil {
		return err
	}
	if _, ok := r.ID(); !ok {
		return fmt.Errorf("testutil: remove %s: record has no id", p.entity)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged = append(p.staged, stagedOp{remove: true, record: r.Clone()})
	return nil
}

// Commit implements manager.Port.
func (p *MemoryPort) Commit(ctx context.Context) error {
	if err := p.failure("Commit"); err != nil {
		return err
	}
	p.mu.Lock()
	staged := p.staged
	p.staged = nil
	p.mu.Unlock()

	p.db.mu.Lock()
	defer p.db.mu.Unlock()
	table := p.db.tables[p.entity]
	for _, op := range staged {
		id, _ := op.record.ID()
		if op.remove {
			delete(table, id)
			continue
		}
		table[id] = op.record
	}
	return nil
}

// Rollback implements manager.Port by dropping every staged write.
func (p *MemoryPort) Rollback(ctx context.Context) error {
	if err := p.failure("Rollback"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged = nil
	return nil
}

func cloneAll(rs []ir.Record) []ir.Record {
	out := make([]ir.Record, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
