// Package perr implements the engine-wide error taxonomy. Every component
// that can fail in a way visible to a caller returns (or wraps) an *Error
// from this package, rather than an ad-hoc error string.
package perr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code enumerates the kinds of errors the engine can surface.
type Code int

const (
	// Internal indicates an unexpected, non-user-facing failure.
	Internal Code = iota
	// NotFound indicates an unknown namespace/entity/column/adapter/placement.
	NotFound
	// AlreadyExists indicates a duplicate name at the same scope.
	AlreadyExists
	// InvariantViolation indicates an operation would break a catalog
	// structural invariant.
	InvariantViolation
	// UnsupportedOnSource indicates DDL was attempted on a SOURCE entity.
	UnsupportedOnSource
	// PartitionError indicates a bad qualifier, unsupported column type, or
	// duplicate partition name.
	PartitionError
	// ConstraintViolation indicates a PK/UNIQUE/FK violation at DML time.
	ConstraintViolation
	// Deadlock indicates the lock manager detected a wait-for cycle.
	Deadlock
	// AdapterError indicates a failure propagated from a storage adapter.
	AdapterError
	// Cancelled indicates user cancellation or a router failure to route.
	Cancelled
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case InvariantViolation:
		return "InvariantViolation"
	case UnsupportedOnSource:
		return "UnsupportedOnSource"
	case PartitionError:
		return "PartitionError"
	case ConstraintViolation:
		return "ConstraintViolation"
	case Deadlock:
		return "Deadlock"
	case AdapterError:
		return "AdapterError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Internal"
	}
}

// Error is the error type returned across component boundaries.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is/As see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with no wrapped cause.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying cause as its underlying reason. cause is
// annotated with a stack trace via pkg/errors so adapter/migrator failures
// keep their origin across rollback paths.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	if cause == nil {
		return New(code, format, args...)
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsNotFound(err error) bool            { return Is(err, NotFound) }
func IsAlreadyExists(err error) bool       { return Is(err, AlreadyExists) }
func IsInvariantViolation(err error) bool  { return Is(err, InvariantViolation) }
func IsUnsupportedOnSource(err error) bool { return Is(err, UnsupportedOnSource) }
func IsPartitionError(err error) bool      { return Is(err, PartitionError) }
func IsConstraintViolation(err error) bool { return Is(err, ConstraintViolation) }
func IsDeadlock(err error) bool            { return Is(err, Deadlock) }
func IsAdapterError(err error) bool        { return Is(err, AdapterError) }
func IsCancelled(err error) bool           { return Is(err, Cancelled) }
