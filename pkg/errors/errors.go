package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidTransition
	ErrPolicyDenied
	ErrConcurrentModification
	ErrPersistence
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:               "not_found",
	ErrBadRequest:             "bad_request",
	ErrUnauthorized:           "unauthorized",
	ErrForbidden:              "forbidden",
	ErrInternal:               "internal",
	ErrInvalidTransition:      "invalid_transition",
	ErrPolicyDenied:           "policy_denied",
	ErrConcurrentModification: "concurrent_modification",
	ErrPersistence:            "persistence_failure",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error_%d", int(c))
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// InvalidTransition reports an edge that is not in the allowed graph of the
// given domain ("status" or "stage").
func InvalidTransition(domain, from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid %s transition from %s to %s", domain, from, to),
		Details: map[string]interface{}{
			"domain": domain,
			"from":   from,
			"to":     to,
		},
	}
}

func PolicyDenied(policy, detail string) *AppError {
	return &AppError{
		Code:    ErrPolicyDenied,
		Message: fmt.Sprintf("denied by %s policy: %s", policy, detail),
		Details: map[string]interface{}{
			"policy": policy,
			"detail": detail,
		},
	}
}

func ConcurrentModification(id fmt.Stringer) *AppError {
	return &AppError{
		Code:    ErrConcurrentModification,
		Message: fmt.Sprintf("appointment %s was modified concurrently, reload and retry", id),
		Details: map[string]interface{}{
			"appointment_id": id.String(),
		},
	}
}

func Persistence(err error) *AppError {
	return &AppError{
		Code:    ErrPersistence,
		Message: "failed to persist appointment change",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
