package planner

import (
	"errors"
	"fmt"
)

// Sentinel errors for compile failures. Use errors.Is to classify.
var (
	// ErrUnknownField is returned when a filter key names a relation or
	// column the entity does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidDateRange is returned when a datetime filter has neither
	// bound, is not a map, or a bound is not a date.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidDirective is returned for a malformed orderBy or limit.
	ErrInvalidDirective = errors.New("invalid directive")
)

// Error carries the filter key that failed to compile.
type Error struct {
	Key    string // filter key as supplied by the caller
	Detail string
	Err    error // one of the sentinels above
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("planner: %s: %q", e.Err, e.Key)
	}
	return fmt.Sprintf("planner: %s: %q: %s", e.Err, e.Key, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(key string, sentinel error, format string, args ...any) *Error {
	return &Error{Key: key, Detail: fmt.Sprintf(format, args...), Err: sentinel}
}

// IsUnknownField reports whether err is (or wraps) ErrUnknownField.
func IsUnknownField(err error) bool {
	return errors.Is(err, ErrUnknownField)
}
