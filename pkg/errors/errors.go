// Package errors provides standardized error types for the query service.
package errors

import (
	"errors"
	"fmt"
)

// Error codes covering the failure taxonomy: input errors, connectivity
// errors, statement errors, and integrity (not-found) errors.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeConnectionFailed  = "CONNECTION_FAILED"
	CodeStatementFailed   = "STATEMENT_FAILED"
	CodeTransactionFailed = "TRANSACTION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// QueryError represents a service error with code, message, and optional details.
type QueryError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by code.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *QueryError) WithDetail(key string, value interface{}) *QueryError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrEmptyStatement     = &QueryError{Code: CodeInvalidRequest, Message: "statement cannot be empty"}
	ErrMissingActor       = &QueryError{Code: CodeInvalidRequest, Message: "actor is required"}
	ErrConnectionNotFound = &QueryError{Code: CodeNotFound, Message: "connection not found"}
	ErrExecutionNotFound  = &QueryError{Code: CodeNotFound, Message: "execution record not found"}
	ErrVersionNotFound    = &QueryError{Code: CodeNotFound, Message: "schema version not found"}
	ErrNoVersions         = &QueryError{Code: CodeNotFound, Message: "no schema versions recorded for table"}
	ErrTagNotFound        = &QueryError{Code: CodeNotFound, Message: "schema version tag not found"}
	ErrBatchNotFound      = &QueryError{Code: CodeNotFound, Message: "batch not found"}
	ErrTargetUnreachable  = &QueryError{Code: CodeConnectionFailed, Message: "target database unreachable"}
)

// New creates a new QueryError with the given code and message.
func New(code, message string) *QueryError {
	return &QueryError{Code: code, Message: message}
}

// Wrap wraps an error with a QueryError.
func Wrap(err error, code, message string) *QueryError {
	if err == nil {
		return nil
	}
	return &QueryError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *QueryError {
	if err == nil {
		return nil
	}
	return &QueryError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == CodeNotFound
	}
	return false
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == CodeInvalidRequest
	}
	return false
}

// IsConnectionFailed checks if an error is a connectivity error.
func IsConnectionFailed(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == CodeConnectionFailed
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Message
	}
	return err.Error()
}
