package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/querysql"
)

// Store provides durable record storage in SQLite.
// Uses WAL mode and a single connection, so there is exactly one writer.
type Store struct {
	db       *sql.DB
	catalog  ir.Catalog
	compiler *querysql.SQLCompiler

	mu sync.Mutex
	tx *sql.Tx // open unit of work, nil when none
}

// Open creates or opens a SQLite database at the given path and ensures a
// table exists for every descriptor in catalog.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, catalog ir.Catalog) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	compiler := querysql.NewSQLCompiler(querysql.DialectSQLite, catalog)
	if err := applySchema(db, compiler, catalog); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, catalog: catalog, compiler: compiler}, nil
}

// Close rolls back any open unit of work and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	s.mu.Unlock()
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Table methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Catalog returns the descriptors the store was opened with.
func (s *Store) Catalog() ir.Catalog {
	return s.catalog
}

// Table returns the port for entity name.
func (s *Store) Table(name string) (*Table, error) {
	desc, ok := s.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("store: unknown entity %q", name)
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
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the open unit of work. A no-op when nothing is staged.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// reader returns the open transaction if any, else the database.
// Caller must hold s.mu.
func (s *Store) reader() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// writer returns the open transaction, beginning one if needed.
// Caller must hold s.mu.
func (s *Store) writer(ctx context.Context) (queryer, error) {
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	return s.tx, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates a table per descriptor and adds columns that newer
// descriptors declare but existing tables lack. Tables are processed in
// name order. This function is idempotent.
func applySchema(db *sql.DB, compiler *querysql.SQLCompiler, catalog ir.Catalog) error {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		desc := catalog[name]
		ddl, err := compiler.CompileCreateTable(desc)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("create table %s: %w", desc.TableName(), err)
		}
		if err := addMissingColumns(db, compiler, desc); err != nil {
			return err
		}
	}
	return nil
}

// addMissingColumns brings an existing table up to date with desc.
// Columns are only ever added; dropped fields keep their data.
func addMissingColumns(db *sql.DB, compiler *querysql.SQLCompiler, desc ir.EntityDescriptor) error {
	existing, err := tableColumns(db, desc.TableName())
	if err != nil {
		return err
	}

	for _, col := range desc.Columns() {
		if existing[col] {
			continue
		}
		stmt, err := compiler.CompileAddColumn(desc, col)
		if err != nil {
			return err
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", desc.TableName(), col, err)
		}
	}
	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	quoted, err := querysql.QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoted))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return cols, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
