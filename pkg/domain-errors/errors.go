// Package domainerrors provides coded errors for the findmyid domain.
//
// Services translate infrastructure facts (pkg/platform/sentinel) into these
// coded errors; handlers translate codes into HTTP statuses. Codes are stable:
// callers may branch on them, messages are free to change.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a stable error kind the calling layer can translate.
type Code string

const (
	// CodeInvalidInput covers malformed input rejected before any mutation:
	// missing required dates, blank rejection reasons, malformed IDs.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest covers transport-level request problems (bad JSON, bad
	// query parameters) before input reaches a service.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound: the referenced entity does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidTransition: a state machine operation was invoked from a
	// state outside its documented source set. No mutation occurred.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeAlreadyEscalated: the match already has an open verification
	// request. An idempotency guard, not a failure of intent.
	CodeAlreadyEscalated Code = "already_escalated"

	// CodeDuplicateMatch: an active match for the pair already exists.
	// Like CodeAlreadyEscalated, callers may treat this as success.
	CodeDuplicateMatch Code = "duplicate_match"

	// CodeUnauthorized: the acting user lacks the required capability.
	// Responses carrying this code must not leak the target's state.
	CodeUnauthorized Code = "unauthorized"

	// CodeConflict: a concurrent writer won a race and the automatic retry
	// also failed.
	CodeConflict Code = "conflict"

	// CodeTimeout: the operation's context expired.
	CodeTimeout Code = "timeout"

	// CodeInternal: unexpected failure; details stay in logs.
	CodeInternal Code = "internal"
)

// DomainError carries a stable code alongside a human-readable message.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status handlers respond with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeConflict, CodeAlreadyEscalated, CodeDuplicateMatch:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
