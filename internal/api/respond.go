package api

import (
	"encoding/json"
	"net/http"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

// writeJSON serializes a payload with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error code to an HTTP status. Everything caused by the
// caller's input is a 400; losing content or failing to serialize is ours.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidLayoutType,
		errors.ErrCodeInvalidImage,
		errors.ErrCodeInvalidPosition,
		errors.ErrCodeTooLarge,
		errors.ErrCodeDocParse,
		errors.ErrCodeNoLayouts,
		errors.ErrCodeConflictingConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a classified error onto the wire.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(errors.GetCode(err)), errorResponse{Error: errors.UserMessage(err)})
}
