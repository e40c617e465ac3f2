// Package ir provides the metadata and input types shared by every recman
// package.
//
// This package contains type definitions and small parsing helpers only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps ir the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Entity descriptors are read-only once compiled; nothing in the core
//     mutates them.
//   - Field and relation order is declaration order. Generated queries must
//     be reproducible, so no unordered map is ever iterated to build one.
//   - Filter maps keep insertion order end-to-end; the order of entries
//     decides clause order and placeholder order.
//   - String-keyed field paths are parsed into FieldPath at exactly one
//     boundary (ParsePath).
package ir
