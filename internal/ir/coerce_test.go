package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		typ  PrimitiveType
		in   any
		want any
	}{
		{"integer from string", TypeInteger, "42", int64(42)},
		{"integer from json", TypeInteger, json.Number("7"), int64(7)},
		{"float from string", TypeFloat, "3.4", 3.4},
		{"decimal from int", TypeDecimal, 4, "4"},
		{"decimal keeps exact text", TypeDecimal, "4.10", "4.10"},
		{"decimal beyond float precision", TypeDecimal, "12345678901234567.89", "12345678901234567.89"},
		{"decimal from float", TypeDecimal, 4.1, "4.1"},
		{"decimal from json", TypeDecimal, json.Number("-0.5"), "-0.5"},
		{"decimal trims space", TypeDecimal, " 7.25 ", "7.25"},
		{"boolean from string", TypeBoolean, "true", true},
		{"datetime from string", TypeDatetime, "2015-05-30", time.Date(2015, 5, 30, 0, 0, 0, 0, time.UTC)},
		{"string from int", TypeString, 12, "12"},
		{"unknown type as string", "markdown", "# hi", "# hi"},
		{"nil stays nil", TypeInteger, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Coerce(TypeInteger, "many")
	assert.Error(t, err)
	_, err = Coerce(TypeDatetime, "someday")
	assert.Error(t, err)
	for _, bad := range []any{"4.1.2", "NaN", "0x10", "", true} {
		_, err = Coerce(TypeDecimal, bad)
		assert.Error(t, err, "%v", bad)
	}
}
