// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
)

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON reads the request body into v, answering 400 or 413 itself
// when it cannot.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// validate answers 400 for the first field that fails.
func validate(w http.ResponseWriter, fields ...middleware.Field) bool {
	err := middleware.ValidateFields(fields...)
	if err == nil {
		return true
	}
	var fe *middleware.FieldError
	if errors.As(err, &fe) {
		writeError(w, http.StatusBadRequest, "INVALID_FIELD", "Invalid value for "+fe.Field+".")
		return false
	}
	writeError(w, http.StatusBadRequest, "INVALID_FIELD", "Invalid request.")
	return false
}
