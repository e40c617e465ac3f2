package pgstore

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/roach88/recman/internal/ir"
)

// decodeRow builds a record from one result row, keeping only desc's stored
// columns.
func decodeRow(desc ir.EntityDescriptor, names []string, values []any) (ir.Record, error) {
	r := ir.NewRecord()
	for i, name := range names {
		if i >= len(values) {
			break
		}
		t, ok := storedType(desc, name)
		if !ok {
			continue
		}
		v, err := decodeValue(t, values[i])
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", desc.Name, name, err)
		}
		r[name] = v
	}
	return r, nil
}

func storedType(desc ir.EntityDescriptor, col string) (ir.PrimitiveType, bool) {
	if f, ok := desc.Field(col); ok {
		return f.Type, true
	}
	for _, rel := range desc.Relations {
		if rel.Kind == ir.RelationOne && rel.ForeignKey() == col {
			return ir.TypeInteger, true
		}
	}
	return "", false
}

// decodeValue normalizes a pgx value. NUMERIC arrives as pgtype.Numeric and
// keeps its exact text unless the field is a float.
func decodeValue(t ir.PrimitiveType, v any) (any, error) {
	switch n := v.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil, nil
		}
		if t == ir.TypeFloat {
			f, err := n.Float64Value()
			if err != nil {
				return nil, err
			}
			v = f.Float64
			break
		}
		text, err := numericText(n)
		if err != nil {
			return nil, err
		}
		v = text
	case []byte:
		v = string(n)
	}
	return ir.Coerce(t, v)
}

// numericText renders n as plain decimal text: Int=125, Exp=-2 is "1.25".
func numericText(n pgtype.Numeric) (string, error) {
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return "", errors.New("numeric has no decimal value")
	}
	i := n.Int
	if i == nil {
		i = new(big.Int)
	}
	sign := ""
	if i.Sign() < 0 {
		sign = "-"
	}
	digits := new(big.Int).Abs(i).String()
	if n.Exp >= 0 {
		if digits == "0" {
			return "0", nil
		}
		return sign + digits + strings.Repeat("0", int(n.Exp)), nil
	}

	scale := int(-n.Exp)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	cut := len(digits) - scale
	return sign + digits[:cut] + "." + digits[cut:], nil
}
