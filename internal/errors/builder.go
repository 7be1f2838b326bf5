package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorBuilder provides a fluent API for constructing errors with hints and
// reportable details before marking them with a sentinel:
//
//	return ierr.NewError("subscription not found").
//		WithHint("Please provide a valid subscription ID").
//		WithReportableDetails(map[string]interface{}{"id": id}).
//		Mark(ierr.ErrNotFound)
type ErrorBuilder struct {
	err *InternalError
}

// NewError starts a builder from a fresh error message
func NewError(message string) *ErrorBuilder {
	return &ErrorBuilder{
		err: &InternalError{
			cause: errors.NewWithDepth(1, message),
		},
	}
}

// NewErrorf starts a builder from a formatted error message
func NewErrorf(format string, args ...interface{}) *ErrorBuilder {
	return &ErrorBuilder{
		err: &InternalError{
			cause: errors.NewWithDepthf(1, format, args...),
		},
	}
}

// WithError starts a builder wrapping an existing error
func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err: &InternalError{
			cause: err,
		},
	}
}

func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err.hint = hint
	return b
}

func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	b.err.hint = fmt.Sprintf(format, args...)
	return b
}

func (b *ErrorBuilder) WithReportableDetails(details map[string]interface{}) *ErrorBuilder {
	b.err.details = details
	return b
}

// Mark finalizes the builder, classifying the error with the given sentinel
func (b *ErrorBuilder) Mark(mark error) error {
	b.err.mark = mark
	return b.err
}
