// Package store provides the SQLite persistence port for record managers.
//
// A Store owns one database and one table per entity descriptor. Tables are
// created from descriptors at Open time and missing columns are added when a
// descriptor grows, so no separate migration files exist.
//
// # Unit of Work
//
// Store.Table returns a *Table implementing manager.Port[ir.Record]. Persist
// and Remove run inside a transaction that is opened lazily on the first
// mutation and closed by Commit (or Rollback). While a transaction is open,
// reads on every table of the store go through it, so a caller always sees
// its own uncommitted writes.
//
// # Deterministic Results
//
// Every SELECT ends with ORDER BY <alias>.id ASC (see querysql), so results
// are stable across runs even when the caller's ordering has ties.
package store
