// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes and the same domain-error translation.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "findmyid/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the shared error envelope.
// Internal and unauthorized errors omit the description: the former to keep
// infrastructure details out of responses, the latter to avoid leaking the
// target's state to unauthorized callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}

	var de *dErrors.DomainError
	if code != dErrors.CodeInternal && code != dErrors.CodeUnauthorized && errors.As(err, &de) {
		body["error_description"] = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
