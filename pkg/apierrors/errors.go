package apierrors

import (
	"errors"
	"net/http"
)

// Kind identifies one member of the closed error taxonomy
type Kind int

const (
	KindAuthentication Kind = iota
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimit
	KindValidation
	KindInternal
)

// Indexing by Kind keeps the mapping exhaustive: adding a Kind without
// extending these tables panics at first use instead of silently mapping
// to a default.
var kindStatus = []int{
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindNotFound:       http.StatusNotFound,
	KindConflict:       http.StatusConflict,
	KindRateLimit:      http.StatusTooManyRequests,
	KindValidation:     http.StatusBadRequest,
	KindInternal:       http.StatusInternalServerError,
}

var kindCode = []string{
	KindAuthentication: "AUTHENTICATION_REQUIRED",
	KindAuthorization:  "ACCESS_DENIED",
	KindNotFound:       "NOT_FOUND",
	KindConflict:       "CONFLICT",
	KindRateLimit:      "RATE_LIMIT_EXCEEDED",
	KindValidation:     "VALIDATION_ERROR",
	KindInternal:       "INTERNAL_ERROR",
}

// StatusCode returns the fixed HTTP status for the kind
func (k Kind) StatusCode() int {
	return kindStatus[k]
}

// Code returns the machine-readable error code for the kind
func (k Kind) Code() string {
	return kindCode[k]
}

// Error is the canonical failure value produced by the pipeline
type Error struct {
	Kind    Kind
	Message string
	// Details carries structured context that is part of the API contract,
	// e.g. the field error list on a validation failure
	Details interface{}
	// Err is the wrapped cause, never exposed to callers directly
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Code()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthenticationRequired returns a 401 error
func NewAuthenticationRequired(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// NewAccessDenied returns a 403 error
func NewAccessDenied(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

// NewNotFound returns a 404 error
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflict returns a 409 error
func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewRateLimitExceeded returns a 429 error
func NewRateLimitExceeded(message string) *Error {
	return &Error{Kind: KindRateLimit, Message: message}
}

// NewValidation returns a 400 error carrying the aggregated field errors
func NewValidation(message string, details interface{}) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NewInternal wraps an unclassified failure as a 500 error
func NewInternal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "An internal error occurred", Err: err}
}

// Classify maps an arbitrary error into the taxonomy. Errors that are not
// (or do not wrap) an *Error become the 500 catch-all.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternal(err)
}
