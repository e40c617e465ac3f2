package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/spf13/cast"

	"github.com/roach88/recman/internal/ir"
)

// checkExpect compares a step's outcome with its expect clause and returns
// one message per mismatch.
func checkExpect(i int, step Step, ev TraceEvent, records []ir.Record, opErr error) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("steps[%d] %s: ", i, step.Op)+fmt.Sprintf(format, args...))
	}
	exp := step.Expect

	switch {
	case exp.Error != "" && opErr == nil:
		fail("expected error %s, got success", exp.Error)
		return errs
	case exp.Error != "" && ev.Error != exp.Error:
		fail("expected error %s, got %s (%v)", exp.Error, ev.Error, opErr)
		return errs
	case exp.Error == "" && opErr != nil:
		fail("unexpected error: %v", opErr)
		return errs
	}

	if exp.Count != nil && ev.Count != *exp.Count {
		fail("expected %d record(s), got %d", *exp.Count, ev.Count)
	}
	if exp.IDs != nil && !slices.Equal(exp.IDs, ev.IDs) {
		fail("expected ids %v, got %v", exp.IDs, ev.IDs)
	}
	if exp.Query != "" && exp.Query != ev.Query {
		fail("expected query\n  %s\ngot\n  %s", exp.Query, ev.Query)
	}
	if exp.Record != nil {
		if len(records) != 1 {
			fail("expected a single record, got %d", len(records))
		} else if diff := matchRecord(records[0], exp.Record); diff != "" {
			fail("%s", diff)
		}
	}
	return errs
}

// EvaluateAssertions checks scenario assertions and returns failure messages.
func EvaluateAssertions(ctx context.Context, h *Harness, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, h, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Op == a.Op {
			n++
		}
	}
	if n != *a.Count {
		return fmt.Errorf("expected %d %s step(s), got %d", *a.Count, a.Op, n)
	}
	return nil
}

// assertTraceOrder checks that ops appear in order. Other steps may
// appear between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Ops) && ev.Op == a.Ops[next] {
			next++
		}
	}
	if next != len(a.Ops) {
		return fmt.Errorf("expected order %v, matched only %v", a.Ops, a.Ops[:next])
	}
	return nil
}

func assertFinalState(ctx context.Context, h *Harness, a Assertion) error {
	m, err := h.manager(ctx, a.Entity)
	if err != nil {
		return err
	}
	records, err := m.ReadBy(ctx, a.Where)
	if err != nil {
		return err
	}
	if a.Count != nil && len(records) != *a.Count {
		return fmt.Errorf("expected %d %s record(s) matching %v, got %d", *a.Count, a.Entity, a.Where, len(records))
	}
	for _, r := range records {
		if diff := matchRecord(r, a.Expect); diff != "" {
			return fmt.Errorf("%s %v: %s", a.Entity, r[ir.IDField], diff)
		}
	}
	return nil
}

// matchRecord does a subset match of expected against r. Expected values are
// converted to the Go type of the stored value before comparing, so YAML's
// 10 matches an int64 and "2015-06-01" matches a time.Time.
func matchRecord(r ir.Record, expected map[string]any) string {
	for k, want := range expected {
		got, ok := r[k]
		if !ok {
			return fmt.Sprintf("field %s: missing", k)
		}
		if !valuesEqual(want, got) {
			return fmt.Sprintf("field %s: expected %v, got %v", k, want, got)
		}
	}
	return ""
}

func valuesEqual(want, got any) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	switch g := got.(type) {
	case time.Time:
		w, err := ir.Coerce(ir.TypeDatetime, want)
		return err == nil && g.Equal(w.(time.Time))
	case int64:
		w, err := cast.ToInt64E(want)
		return err == nil && w == g
	case float64:
		w, err := cast.ToFloat64E(want)
		return err == nil && w == g
	case bool:
		w, err := cast.ToBoolE(want)
		return err == nil && w == g
	case string:
		w, err := cast.ToStringE(want)
		return err == nil && w == g
	default:
		return reflect.DeepEqual(want, got)
	}
}
