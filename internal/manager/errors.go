package manager

import (
	"errors"
	"fmt"

	"github.com/roach88/recman/internal/planner"
)

// Kind categorizes manager errors.
type Kind string

const (
	// KindResourceNotFound indicates the requested id does not exist.
	KindResourceNotFound Kind = "RESOURCE_NOT_FOUND"

	// KindUnknownField indicates a filter or lookup names a relation or
	// column the entity does not declare.
	KindUnknownField Kind = "UNKNOWN_FIELD"

	// KindInvalidDateRange indicates a datetime filter without usable bounds.
	KindInvalidDateRange Kind = "INVALID_DATE_RANGE"

	// KindInvalidDirective indicates a malformed orderBy or limit.
	KindInvalidDirective Kind = "INVALID_DIRECTIVE"
)

// Sentinels for errors.Is. ErrNotFound matches both missing ids and unknown
// fields, since callers historically treat "no such column" as not found.
// ErrUnknownField matches only the latter.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidDirective = errors.New("invalid directive")
)

// Error is a classified manager failure.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// Entity is the managed entity name.
	Entity string

	// Field is the offending filter key, for field and directive errors.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (entity=%s, field=%s)", e.Kind, e.Message, e.Entity, e.Field)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Kind, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindResourceNotFound || e.Kind == KindUnknownField
	case ErrUnknownField:
		return e.Kind == KindUnknownField
	case ErrInvalidDateRange:
		return e.Kind == KindInvalidDateRange
	case ErrInvalidDirective:
		return e.Kind == KindInvalidDirective
	default:
		return false
	}
}

// KindOf returns the Kind of err, or "" if err is not a manager error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsNotFound returns true for missing ids and unknown fields.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NewNotFoundError creates an Error for a missing id.
func NewNotFoundError(entity string, id int64) *Error {
	return &Error{
		Kind:    KindResourceNotFound,
		Message: fmt.Sprintf("no %s with id %d", entity, id),
		Entity:  entity,
	}
}

// NewUnknownFieldError creates an Error for an undeclared field.
func NewUnknownFieldError(entity, field string) *Error {
	return &Error{
		Kind:    KindUnknownField,
		Message: "table or column does not exist",
		Entity:  entity,
		Field:   field,
	}
}

// fromPlanner classifies a compile failure.
func fromPlanner(entity string, err error) error {
	var perr *planner.Error
	if !errors.As(err, &perr) {
		return err
	}

	kind := KindUnknownField
	switch {
	case errors.Is(err, planner.ErrInvalidDateRange):
		kind = KindInvalidDateRange
	case errors.Is(err, planner.ErrInvalidDirective):
		kind = KindInvalidDirective
	}

	msg := perr.Detail
	if msg == "" {
		msg = perr.Err.Error()
	}
	return &Error{
		Kind:    kind,
		Message: msg,
		Entity:  entity,
		Field:   perr.Key,
		Err:     err,
	}
}
