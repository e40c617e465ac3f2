// Package harness runs record-manager scenarios described in YAML.
//
// A scenario names CUE schema files, seeds records, then runs a sequence of
// manager operations and checks each outcome. Every scenario runs against a
// fresh in-memory SQLite store, with a fixed trace id, so its trace is
// identical across runs and can be snapshotted with goldie.
//
// # Scenario Format
//
//	name: blog_queries
//	description: "Filtered reads across relations"
//	schemas:
//	  - ../schema/blog.cue
//	entity: Article            # default entity for setup and steps
//	setup:
//	  - entity: Author
//	    data: { name: Ann }
//	  - data: { title: "Go tips", author_id: 1 }
//	steps:
//	  - op: query
//	    filter:
//	      author_name: Ann
//	      orderBy: { views: DESC }
//	    expect: { count: 1, ids: [1] }
//	  - op: read
//	    id: 9
//	    expect: { error: RESOURCE_NOT_FOUND }
//	assertions:
//	  - type: final_state
//	    entity: Article
//	    where: { title: "Go tips" }
//	    count: 1
//
// Operations: create, read, list, find, query, compile, update, delete.
// compile builds the query without executing it, which is how filters that
// order by undeclared columns are checked.
//
// # Assertion Types
//
//   - trace_count: the op appears exactly N times in the trace
//   - trace_order: the listed ops appear in order
//   - final_state: records matching where (equality) number count, or
//     all carry the expect fields
package harness
