package errors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors used to classify failures across the codebase. Errors are
// never matched by string; callers mark an error with one of these and the
// boundaries (HTTP layer, scheduler aggregation) branch on the mark.
var (
	ErrValidation       = errors.New("validation_error")
	ErrNotFound         = errors.New("not_found")
	ErrAlreadyExists    = errors.New("already_exists")
	ErrVersionConflict  = errors.New("version_conflict")
	ErrInvalidOperation = errors.New("invalid_operation")
	ErrDatabase         = errors.New("database_error")
	ErrIntegration      = errors.New("integration_error")
	ErrInternal         = errors.New("internal_error")
)

// InternalError is the concrete error type produced by the builder. It
// carries a user-safe hint and structured details alongside the cause.
type InternalError struct {
	cause   error
	mark    error
	hint    string
	details map[string]interface{}
}

func (e *InternalError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *InternalError) Unwrap() error {
	return e.cause
}

// Is reports whether the error was marked with, or wraps, the target
func (e *InternalError) Is(target error) bool {
	if e.mark != nil && errors.Is(e.mark, target) {
		return true
	}
	return errors.Is(e.cause, target)
}

// Hint returns the user-safe hint attached to the error, if any
func (e *InternalError) Hint() string {
	return e.hint
}

// ReportableDetails returns structured details safe to surface to operators
func (e *InternalError) ReportableDetails() map[string]interface{} {
	return e.details
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsIntegration(err error) bool {
	return errors.Is(err, ErrIntegration)
}
