package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorType classifies a request failure.
type ErrorType string

const (
	ValidationError ErrorType = "ValidationError"
	AuthError       ErrorType = "AuthError"
	NotFoundError   ErrorType = "NotFoundError"
	InternalError   ErrorType = "InternalError"
)

// Error is a request failure with an associated HTTP status code. It renders
// as the JSON envelope {"error":{"type","code","message"}}.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status associated with the failure.
func (e *Error) StatusCode() int {
	return e.Code
}

// Validation returns a 400 malformed/missing-input failure.
func Validation(message string) *Error {
	return &Error{Type: ValidationError, Code: http.StatusBadRequest, Message: message}
}

// PreconditionFailed returns a 412 invariant failure, used when a join would
// push a wallet past its cosigner count.
func PreconditionFailed(message string) *Error {
	return &Error{Type: ValidationError, Code: http.StatusPreconditionFailed, Message: message}
}

// Unauthorized returns a 401 missing/bad transport credential failure.
func Unauthorized(message string) *Error {
	return &Error{Type: AuthError, Code: http.StatusUnauthorized, Message: message}
}

// Forbidden returns a 403 authorization failure.
func Forbidden(message string) *Error {
	return &Error{Type: AuthError, Code: http.StatusForbidden, Message: message}
}

// NotFound returns a 404 unknown-or-removed wallet failure.
func NotFound(message string) *Error {
	return &Error{Type: NotFoundError, Code: http.StatusNotFound, Message: message}
}

// Internal returns a 500 collaborator failure.
func Internal(message string) *Error {
	return &Error{Type: InternalError, Code: http.StatusInternalServerError, Message: message}
}

// ErrorEnvelope is the wire form of every failure response.
type ErrorEnvelope struct {
	Err Error `json:"error"`
}

// WriteError renders err as the JSON error envelope. Errors that are not
// *Error render as 500 InternalError without exposing internal detail beyond
// the message.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := AsError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Err: *apiErr})
}

// AsError coerces any error into an *Error, defaulting to a 500.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err.Error())
}
