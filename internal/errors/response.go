package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// ErrorResponse is the JSON shape returned by the HTTP layer for any error
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the classified error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Hint    string                 `json:"hint,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewErrorResponse converts any error into the wire representation
func NewErrorResponse(err error) *ErrorResponse {
	detail := ErrorDetail{
		Code:    codeFromError(err),
		Message: err.Error(),
	}

	var internal *InternalError
	if errors.As(err, &internal) {
		detail.Hint = internal.Hint()
		detail.Details = internal.ReportableDetails()
	}

	return &ErrorResponse{
		Success: false,
		Error:   detail,
	}
}

// HTTPStatusFromErr maps classified errors onto HTTP status codes
func HTTPStatusFromErr(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsAlreadyExists(err), IsVersionConflict(err):
		return http.StatusConflict
	case IsInvalidOperation(err):
		return http.StatusUnprocessableEntity
	case IsIntegration(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func codeFromError(err error) string {
	switch {
	case IsValidation(err):
		return ErrValidation.Error()
	case IsNotFound(err):
		return ErrNotFound.Error()
	case IsAlreadyExists(err):
		return ErrAlreadyExists.Error()
	case IsVersionConflict(err):
		return ErrVersionConflict.Error()
	case IsInvalidOperation(err):
		return ErrInvalidOperation.Error()
	case IsDatabase(err):
		return ErrDatabase.Error()
	case IsIntegration(err):
		return ErrIntegration.Error()
	default:
		return ErrInternal.Error()
	}
}
