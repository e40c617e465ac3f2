// Package pgstore provides the PostgreSQL persistence port for record managers.
//
// It mirrors package store: one table per entity descriptor, created at Open,
// and a lazily opened unit of work that Commit or Rollback closes. Queries are rendered by
// querysql with the postgres dialect ($n placeholders, RETURNING "id").
//
// Connections come from a pgxpool.Pool. While a unit of work is open every
// statement goes through its transaction, so callers see their own writes.
package pgstore
