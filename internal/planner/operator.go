package planner

import (
	"encoding/json"
	"time"

	"github.com/spf13/cast"

	"github.com/roach88/recman/internal/ir"
	"github.com/roach88/recman/internal/queryir"
)

// operatorStrategy emits the predicate for one filter entry whose field has
// been resolved. next is the first free placeholder index; the returned
// params are bound starting there.
type operatorStrategy func(key string, field ir.FieldPath, value any, next int) (queryir.Predicate, []any, error)

// operators maps each primitive type to its strategy. Types not listed,
// including undeclared ones, fall back to defaultOperator.
var operators = map[ir.PrimitiveType]operatorStrategy{
	ir.TypeInteger:  compare(queryir.OpEq),
	ir.TypeFloat:    compare(queryir.OpEq),
	ir.TypeDecimal:  compare(queryir.OpEq),
	ir.TypeBoolean:  compare(queryir.OpEq),
	ir.TypeDatetime: dateRange,
}

// defaultOperator matches with LIKE. Wildcards are the caller's to supply.
var defaultOperator = compare(queryir.OpLike)

func strategyFor(t ir.PrimitiveType) operatorStrategy {
	if s, ok := operators[t]; ok {
		return s
	}
	return defaultOperator
}

// compare binds the raw value at a single placeholder.
func compare(op queryir.Operator) operatorStrategy {
	return func(_ string, field ir.FieldPath, value any, next int) (queryir.Predicate, []any, error) {
		return queryir.Comparison{Field: field, Op: op, Index: next}, []any{value}, nil
	}
}

// dateRange handles {startDate, endDate} sub-maps:
//
//	end only   -> field <= ?i
//	start only -> field >= ?i
//	both       -> (field >= ?i AND field <= ?i+1)
func dateRange(key string, field ir.FieldPath, value any, next int) (queryir.Predicate, []any, error) {
	bounds, ok := asFilterMap(value)
	if !ok {
		return nil, nil, newError(key, ErrInvalidDateRange, "expected {%s, %s}, got %T", ir.RangeStart, ir.RangeEnd, value)
	}

	startRaw, hasStart := boundValue(bounds, ir.RangeStart)
	endRaw, hasEnd := boundValue(bounds, ir.RangeEnd)

	var start, end time.Time
	var err error
	if hasStart {
		if start, err = parseBound(startRaw); err != nil {
			return nil, nil, newError(key, ErrInvalidDateRange, "%s: %v", ir.RangeStart, err)
		}
	}
	if hasEnd {
		if end, err = parseBound(endRaw); err != nil {
			return nil, nil, newError(key, ErrInvalidDateRange, "%s: %v", ir.RangeEnd, err)
		}
	}

	switch {
	case hasStart && hasEnd:
		return queryir.Range{Field: field, Start: next, End: next + 1}, []any{start, end}, nil
	case hasStart:
		return queryir.Comparison{Field: field, Op: queryir.OpGte, Index: next}, []any{start}, nil
	case hasEnd:
		return queryir.Comparison{Field: field, Op: queryir.OpLte, Index: next}, []any{end}, nil
	default:
		return nil, nil, newError(key, ErrInvalidDateRange, "neither %s nor %s given", ir.RangeStart, ir.RangeEnd)
	}
}

func boundValue(m *ir.FilterMap, key string) (any, bool) {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func parseBound(v any) (time.Time, error) {
	switch b := v.(type) {
	case time.Time:
		return b.UTC(), nil
	case string:
		return ir.ParseDate(b)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return time.Time{}, err
		}
		return ir.ParseDate(s)
	}
}

// asFilterMap accepts the nested forms a decoded or hand-built filter may carry.
func asFilterMap(v any) (*ir.FilterMap, bool) {
	switch m := v.(type) {
	case *ir.FilterMap:
		return m, m != nil
	case ir.FilterMap:
		return &m, true
	case map[string]any:
		out := ir.NewFilterMap()
		for k, val := range m {
			out.Set(k, val)
		}
		return out, true
	case map[string]string:
		out := ir.NewFilterMap()
		for k, val := range m {
			out.Set(k, val)
		}
		return out, true
	default:
		return nil, false
	}
}

// toInt coerces a limit value. json.Number goes through its string form.
func toInt(v any) (int, error) {
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	return cast.ToIntE(v)
}
