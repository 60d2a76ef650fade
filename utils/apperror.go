package utils

import (
	"errors"
	"net/http"
)

// AppError is the error surface of the domain services. Handlers translate
// it to the response verbatim; anything else becomes a 500.
type AppError struct {
	Status  int         `json:"-"`
	Code    string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Code + ": " + e.Message
}

// NewValidation flags malformed input or an illegal state transition.
func NewValidation(code, message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: code, Message: message}
}

// NewConflict flags a business rejection (overlap, duplicate, balance).
// The caller may resubmit with different parameters; nothing retries it.
func NewConflict(code, message string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: code, Message: message}
}

// NewNotFound flags an absent or soft-deleted entity.
func NewNotFound(code, message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: code, Message: message}
}

// NewDependency flags a collaborator failure (ledger, notification).
func NewDependency(code, message string) *AppError {
	return &AppError{Status: http.StatusBadGateway, Code: code, Message: message}
}

// WithDetails attaches structured context, e.g. the blocking id set of a
// failed restore.
func (e *AppError) WithDetails(details interface{}) *AppError {
	copied := *e
	copied.Details = details
	return &copied
}

// AsAppError unwraps err into an *AppError if it is one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
