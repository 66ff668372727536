package core

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports input rejected before any store call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %v", e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError reports a failed persistence call. Callers surface it to the
// user and never apply the attempted change locally; it is not retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Timeout reports whether the store call ran out of time.
func (e *StoreError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// PreconditionKind separates permission denials from invalid ledger state.
type PreconditionKind int

const (
	KindPermission PreconditionKind = iota
	KindState
)

// PreconditionError reports a mutation attempted in a state or by a role
// that does not allow it.
type PreconditionError struct {
	Kind   PreconditionKind
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// Denied builds a permission PreconditionError.
func Denied(format string, args ...any) error {
	return &PreconditionError{Kind: KindPermission, Reason: fmt.Sprintf(format, args...)}
}

// Conflict builds a state PreconditionError.
func Conflict(format string, args ...any) error {
	return &PreconditionError{Kind: KindState, Reason: fmt.Sprintf(format, args...)}
}

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
