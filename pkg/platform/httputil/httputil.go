// Package httputil centralizes JSON encoding and error translation for
// HTTP handlers so every endpoint produces the same envelope for the same
// failure class.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "idledger/pkg/errors"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into the JSON error envelope.
// Internal failures omit the description; the detail belongs in logs, not
// responses.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	var coded *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &coded) {
		body["error_description"] = coded.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// Decode reads a JSON request body strictly: unknown fields and trailing
// data are validation errors, and bodies are capped at 1 MiB.
func Decode[T any](r *http.Request, into *T) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		// An absent body decodes as the zero request; field-level
		// validation decides whether that is acceptable.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed request body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeValidation, "request body contains trailing data")
	}
	return nil
}

// DecodeAndPrepare decodes the body and writes the validation error itself
// on failure, so handlers reduce to a single ok check.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := Decode(r, &req); err != nil {
		WriteError(w, err)
		var zero T
		return zero, false
	}
	return req, true
}
