// Package queryir provides the compiled query representation produced by the
// filter compiler and consumed by persistence ports.
//
// ARCHITECTURE:
//
// The Query IR sits between the filter compiler and the backends:
//
//	[filter map] → [planner.Compile] → [Query IR] → [querysql.SQLCompiler] → SQLite / Postgres
//	                                              → [Query.DQL]          → object-query text (tests, CLI)
//
// A Query is built in two stages. planner.BuildBaseQuery produces the
// skeleton (root alias, select list, left joins) once per manager. Each
// filtered read clones that skeleton and appends clauses, ordering, the
// result limit and bound parameters. The skeleton itself is never mutated.
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern. Only Comparison and
// Range implement it, so renderers can switch exhaustively:
//
//	switch p := clause.Predicate.(type) {
//	case Comparison:
//	    // field <op> ?i
//	case Range:
//	    // (field >= ?i AND field <= ?i+1)
//	}
//
// INVARIANTS (checked by Validate):
//
//   - Placeholder indices start at 0 and are contiguous in clause order.
//     A Range consumes two consecutive indices.
//   - The first clause uses CombinatorWhere; every later clause uses
//     CombinatorAnd or CombinatorOr.
//   - len(Params) equals the number of placeholders.
//   - Directions are ASC or DESC; MaxResults is never negative.
//
// Combinators fold from the left: `a AND b OR c AND d` is
// `((a AND b) OR c) AND d`. Condition renders that grouping and Match
// evaluates it.
package queryir
