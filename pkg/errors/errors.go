package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different kinds of failures the sync engine can hit
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeServerError   ErrorType = "server_error"
	ErrorTypeAuthExpired   ErrorType = "auth_expired"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeMalformed     ErrorType = "malformed_document"
	ErrorTypeRequestFailed ErrorType = "request_failed"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Sentinels for errors.Is checks. Matching is by type only.
var (
	ErrAuthExpired   = &Error{Type: ErrorTypeAuthExpired}
	ErrNotFound      = &Error{Type: ErrorTypeNotFound}
	ErrMalformed     = &Error{Type: ErrorTypeMalformed}
	ErrRequestFailed = &Error{Type: ErrorTypeRequestFailed}
)

// Error represents a remote service error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

// New creates a typed error with a formatted message
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	} else {
		msg = fmt.Sprintf("%s error: %s", e.Type, msg)
	}
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// TypeOf returns the ErrorType of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuthExpired, ErrorTypeNotFound, ErrorTypeMalformed, ErrorTypeRequestFailed:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// TypeForStatus maps a retryable HTTP status code to its error type
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode == 404:
		return ErrorTypeNotFound
	default:
		return ErrorTypeUnknown
	}
}
