package services

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks input that failed validation. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing lead, cadence, step or assignment.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that clashes with current state.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level messages and matches ErrValidation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError, or nil when there are no problems.
func Invalid(problems ...string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// NotFoundError names the missing entity and matches ErrNotFound.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string) error { return &NotFoundError{Entity: entity} }

// ConflictError explains a state clash and matches ErrConflict.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func conflict(reason string) error { return &ConflictError{Reason: reason} }
