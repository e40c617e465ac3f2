package ir

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates the relation segment from the field segment in a
// normalized field path ("author.name").
const PathSeparator = "."

// Field path parse errors.
var (
	ErrEmptyPath   = errors.New("empty field path")
	ErrPathTooDeep = errors.New("field path has more than one relation hop")
)

// FieldPath is a parsed filter key: an optional relation (or root alias)
// followed by a field name.
type FieldPath struct {
	Relation string `json:"relation,omitempty"`
	Field    string `json:"field"`
}

// ParsePath parses a filter key into a FieldPath.
//
// Underscore is the wire-format relation separator, so "author_name" and
// "author.name" parse identically. At most two segments are allowed.
//
// Examples:
//
//	ParsePath("title")        // {Field: "title"}
//	ParsePath("author_name")  // {Relation: "author", Field: "name"}
//	ParsePath("a_b_c")        // ErrPathTooDeep
func ParsePath(key string) (FieldPath, error) {
	normalized := strings.ReplaceAll(key, "_", PathSeparator)
	parts := strings.Split(normalized, PathSeparator)
	for _, p := range parts {
		if p == "" {
			return FieldPath{}, fmt.Errorf("%w: %q", ErrEmptyPath, key)
		}
	}

	switch len(parts) {
	case 1:
		return FieldPath{Field: parts[0]}, nil
	case 2:
		return FieldPath{Relation: parts[0], Field: parts[1]}, nil
	default:
		return FieldPath{}, fmt.Errorf("%w: %q", ErrPathTooDeep, key)
	}
}

// Qualified reports whether the path names a relation or alias segment.
func (p FieldPath) Qualified() bool {
	return p.Relation != ""
}

// Qualify prefixes an unqualified path with alias.
func (p FieldPath) Qualify(alias string) FieldPath {
	if p.Relation == "" {
		p.Relation = alias
	}
	return p
}

// String renders the path in normalized dotted form.
func (p FieldPath) String() string {
	if p.Relation == "" {
		return p.Field
	}
	return p.Relation + PathSeparator + p.Field
}
