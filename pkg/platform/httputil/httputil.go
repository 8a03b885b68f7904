// Package httputil centralizes JSON response and error envelope handling so
// every handler speaks the same wire format.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "bursa/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures at this point
// cannot be reported to the client anymore, so they are dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors omit the description so storage details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// Decode reads a JSON request body into T, classifying malformed payloads as
// bad requests.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return v, nil
}
