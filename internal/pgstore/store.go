package pgstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/querysql"
)

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig returns conservative pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          5,
		MinConns:          1,
		MaxConnLifetime:   time.Minute * 30,
		MaxConnIdleTime:   time.Minute * 5,
		HealthCheckPeriod: time.Minute,
	}
}

// Store provides record storage in PostgreSQL.
type Store struct {
	pool     *pgxpool.Pool
	catalog  ir.Catalog
	compiler *querysql.SQLCompiler

	mu sync.Mutex
	tx pgx.Tx // open unit of work, nil when none
}

// ParseConfig parses dsn and applies pool settings.
func ParseConfig(dsn string, pc PoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.MaxConns = pc.MaxConns
	cfg.MinConns = pc.MinConns
	cfg.MaxConnLifetime = pc.MaxConnLifetime
	cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	cfg.HealthCheckPeriod = pc.HealthCheckPeriod
	return cfg, nil
}

// Open connects to dsn and ensures a table exists for every descriptor in
// catalog. Safe to call against an already initialized database.
func Open(ctx context.Context, dsn string, catalog ir.Catalog) (*Store, error) {
	cfg, err := ParseConfig(dsn, DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	compiler := querysql.NewSQLCompiler(querysql.DialectPostgres, catalog)
	stmts, err := schemaStatements(compiler, catalog)
	if err != nil {
		pool.Close()
		return nil, err
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &Store{pool: pool, catalog: catalog, compiler: compiler}, nil
}

// Close rolls back any open unit of work and closes the pool.
func (s *Store) Close() {
	s.mu.Lock()
	if s.tx != nil {
		s.tx.Rollback(context.Background())
		s.tx = nil
	}
	s.mu.Unlock()
	if s.pool != nil {
		s.pool.Close()
	}
}

// Catalog returns the descriptors the store was opened with.
func (s *Store) Catalog() ir.Catalog {
	return s.catalog
}

// Table returns the port for entity name.
func (s *Store) Table(name string) (*Table, error) {
	desc, ok := s.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("pgstore: unknown entity %q", name)
	}
	return &Table{store: s, desc: desc}, nil
}

// Commit commits the open unit of work. A no-op when nothing is staged.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the open unit of work. A no-op when nothing is staged.
func (s *Store) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// reader returns the open transaction if any, else the pool.
// Caller must hold s.mu.
func (s *Store) reader() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

// writer returns the open transaction, beginning one if needed.
// Caller must hold s.mu.
func (s *Store) writer(ctx context.Context) (querier, error) {
	if s.tx == nil {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// schemaStatements renders the DDL that brings a database up to date with
// catalog: a CREATE TABLE per descriptor followed by guarded ADD COLUMNs,
// tables in name order.
func schemaStatements(compiler *querysql.SQLCompiler, catalog ir.Catalog) ([]string, error) {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		desc := catalog[name]
		ddl, err := compiler.CompileCreateTable(desc)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, ddl)
		for _, col := range desc.Columns() {
			if col == ir.IDField {
				continue
			}
			alter, err := compiler.CompileAddColumn(desc, col)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, alter)
		}
	}
	return stmts, nil
}
