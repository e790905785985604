package apperr

import (
	"errors"
	"fmt"
)

// Error codes for the HR assistant
const (
	// General errors (1xxx)
	CodeUnknown = 1000 + iota
	CodeConfiguration
	CodeInvalidInput
	CodeNotFound
)

const (
	// Reasoning collaborator errors (2xxx)
	CodeCollaborator = 2000 + iota
	CodeCollaboratorEmpty
	CodeCollaboratorMalformed
)

const (
	// Storage errors (3xxx)
	CodeStorage = 3000 + iota
	CodeStorageDecode
)

const (
	// Leave request errors (4xxx)
	CodeLeave = 4000 + iota
	CodeInsufficientBalance
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		if e.Detail != "" {
			return fmt.Sprintf("[%d] %s: %s (%v)", e.Code, e.Message, e.Detail, e.Cause)
		}
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	if e.Detail != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with code and message
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// WithDetail returns a copy of the error carrying detail
func (e *AppError) WithDetail(detail string) *AppError {
	out := *e
	out.Detail = detail
	return &out
}

// Is reports whether any error in err's chain carries code
func Is(err error, code int) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// Code returns the code of the first AppError in err's chain, CodeUnknown for
// foreign errors and 0 for nil.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Category folds a code to its thousand-range family (CodeCollaborator, CodeStorage, ...).
func Category(code int) int {
	if code < 1000 {
		return CodeUnknown
	}
	if code < 2000 {
		return code
	}
	return code / 1000 * 1000
}
