package ir

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Coerce converts raw to the Go representation of t. nil stays nil.
//
//	integer          -> int64
//	float            -> float64
//	decimal          -> string holding the exact decimal text
//	boolean          -> bool
//	datetime         -> time.Time (UTC)
//	everything else  -> string
func Coerce(t PrimitiveType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if n, ok := raw.(json.Number); ok {
		raw = n.String()
	}

	switch t {
	case TypeInteger:
		return cast.ToInt64E(raw)
	case TypeFloat:
		return cast.ToFloat64E(raw)
	case TypeDecimal:
		return toDecimal(raw)
	case TypeBoolean:
		return cast.ToBoolE(raw)
	case TypeDatetime:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			return ParseDate(v)
		default:
			tm, err := cast.ToTimeE(raw)
			if err != nil {
				return nil, err
			}
			return tm.UTC(), nil
		}
	default:
		return cast.ToStringE(raw)
	}
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// toDecimal keeps a decimal as text so a NUMERIC column compares it without
// float rounding. Go numbers format with the fewest digits that round-trip.
func toDecimal(raw any) (string, error) {
	s, err := cast.ToStringE(raw)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("unable to cast %#v of type %T to decimal", raw, raw)
	}
	return s, nil
}
