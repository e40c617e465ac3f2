// Package planner turns filter maps into compiled queries.
//
// Three pieces cooperate:
//
//   - BuildBaseQuery derives the join skeleton from an entity descriptor:
//     the root alias, one select entry per relation, one left join per relation.
//   - Resolve / ResolveType map a filter key onto a declared field, following
//     at most one relation hop through the catalog.
//   - Compile walks a filter map in insertion order and appends predicates,
//     ordering, the result limit and bound parameters to a clone of the skeleton.
//
// The skeleton is never mutated, so a single skeleton may be shared by
// concurrent Compile calls.
//
// Operator choice is table-driven (see operators in operator.go). Adding a
// primitive type means adding a map entry, not a branch.
package planner
