package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// WriteJSON encodes data as the response body with the given status.
// The Content-Type header has to be set before WriteHeader.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Nothing useful can be done with an encode error this late in
	// the response.
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse is the error envelope every endpoint shares: a stable
// machine-readable code plus a human-readable message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the shared error envelope.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

var errBadRequestBody = errors.New("request body is not valid JSON for this endpoint")

// ParseJSON decodes the request body into v, rejecting fields the
// target type does not declare. The Content-Type header is already
// enforced by the contentTypeJSON middleware, so only the body itself
// is checked here.
func ParseJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadRequestBody
	}
	return nil
}
