package testutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// row is one left-joined tuple: alias -> record (nil when the join found nothing).
type row map[string]ir.Record

// joinRows expands the root table through every join of q, mirroring
// LEFT JOIN semantics. Caller must hold db.mu.
func (db *MemoryDB) joinRows(q queryir.Query) ([]row, error) {
	if _, ok := db.tables[q.Entity]; !ok {
		return nil, fmt.Errorf("testutil: no table for %q", q.Entity)
	}

	rows := make([]row, 0)
	for _, r := range db.snapshot(q.Entity) {
		rows = append(rows, row{q.Alias: r})
	}

	for _, j := range q.Joins {
		if _, ok := db.tables[j.Relation.Target]; !ok {
			return nil, fmt.Errorf("testutil: no table for relation target %q", j.Relation.Target)
		}
		targets := db.snapshot(j.Relation.Target)

		next := make([]row, 0, len(rows))
		for _, base := range rows {
			matches := joinMatches(base[q.Alias], j.Relation, targets)
			if len(matches) == 0 {
				next = append(next, extend(base, j.Alias, nil))
				continue
			}
			for _, m := range matches {
				next = append(next, extend(base, j.Alias, m))
			}
		}
		rows = next
	}
	return rows, nil
}

func joinMatches(root ir.Record, rel ir.Relation, targets []ir.Record) []ir.Record {
	var out []ir.Record
	rootID, _ := root.ID()
	for _, t := range targets {
		switch rel.Kind {
		case ir.RelationMany:
			if equalValues(t[rel.ForeignKey()], rootID) {
				out = append(out, t)
			}
		default:
			tid, _ := t.ID()
			if equalValues(root[rel.ForeignKey()], tid) {
				out = append(out, t)
			}
		}
	}
	return out
}

func extend(base row, alias string, r ir.Record) row {
	out := make(row, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[alias] = r
	return out
}

// evaluate filters, orders, de-duplicates and limits rows, returning root records.
func evaluate(q queryir.Query, rows []row) ([]ir.Record, error) {
	kept := make([]row, 0, len(rows))
	for _, r := range rows {
		ok, err := matchWhere(q, r)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, r)
		}
	}

	if q.OrderBy != nil {
		ob := *q.OrderBy
		sort.SliceStable(kept, func(i, j int) bool {
			c := compareValues(lookup(kept[i], ob.Field), lookup(kept[j], ob.Field))
			if ob.Direction == queryir.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	out := []ir.Record{}
	seen := make(map[int64]bool)
	for _, r := range kept {
		root := r[q.Alias]
		id, _ := root.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, root.Clone())
	}

	if q.MaxResults != nil && len(out) > *q.MaxResults {
		out = out[:*q.MaxResults]
	}
	return out, nil
}

// matchWhere folds the clauses from the left, as the SQL renderer groups them.
func matchWhere(q queryir.Query, r row) (bool, error) {
	return q.Match(func(p queryir.Predicate) (bool, error) {
		return matchPredicate(p, q.Params, r)
	})
}

func matchPredicate(p queryir.Predicate, params []any, r row) (bool, error) {
	param := func(i int) (any, error) {
		if i < 0 || i >= len(params) {
			return nil, fmt.Errorf("testutil: placeholder ?%d has no bound value", i)
		}
		return params[i], nil
	}

	switch p := p.(type) {
	case queryir.Comparison:
		want, err := param(p.Index)
		if err != nil {
			return false, err
		}
		return compareOp(p.Op, lookup(r, p.Field), want), nil
	case queryir.Range:
		lo, err := param(p.Start)
		if err != nil {
			return false, err
		}
		hi, err := param(p.End)
		if err != nil {
			return false, err
		}
		got := lookup(r, p.Field)
		return compareOp(queryir.OpGte, got, lo) && compareOp(queryir.OpLte, got, hi), nil
	default:
		return false, fmt.Errorf("testutil: unsupported predicate %T", p)
	}
}

func lookup(r row, path ir.FieldPath) any {
	rec := r[path.Relation]
	if rec == nil {
		return nil
	}
	return rec[path.Field]
}

func compareOp(op queryir.Operator, got, want any) bool {
	if got == nil || want == nil {
		return false
	}
	switch op {
	case queryir.OpEq:
		return equalValues(got, want)
	case queryir.OpLike:
		return likeMatch(cast.ToString(got), cast.ToString(want))
	case queryir.OpGte:
		return compareValues(got, want) >= 0
	case queryir.OpLte:
		return compareValues(got, want) <= 0
	default:
		return false
	}
}

// equalValues compares numerically when both sides are numeric, as times
// when either side is a time, and as strings otherwise. nil equals only nil.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return compareValues(a, b) == 0
}

// compareValues orders nil first, then by the most specific common type.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	a, b = unwrapNumber(a), unwrapNumber(b)

	if ta, tb, ok := asTimes(a, b); ok {
		return ta.Compare(tb)
	}

	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil && !isBoolOnly(a, b) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(cast.ToString(a), cast.ToString(b))
}

func unwrapNumber(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

func isBoolOnly(a, b any) bool {
	_, ab := a.(bool)
	_, bb := b.(bool)
	return ab != bb
}

func asTimes(a, b any) (time.Time, time.Time, bool) {
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if !aok && !bok {
		return time.Time{}, time.Time{}, false
	}
	var err error
	if !aok {
		if ta, err = ir.ParseDate(cast.ToString(a)); err != nil {
			return time.Time{}, time.Time{}, false
		}
	}
	if !bok {
		if tb, err = ir.ParseDate(cast.ToString(b)); err != nil {
			return time.Time{}, time.Time{}, false
		}
	}
	return ta, tb, true
}

// likeMatch implements SQL LIKE with % and _ wildcards, ASCII case-insensitive.
func likeMatch(s, pattern string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
