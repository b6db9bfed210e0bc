// Package respond provides the JSON response envelope and rendering
// helpers.
package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform shape of every API response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Render writes an envelope with the given HTTP status code.
func Render(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// OK writes a 200 success envelope around data.
func OK(w http.ResponseWriter, data any) {
	Render(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope around data.
func Created(w http.ResponseWriter, data any) {
	Render(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a failure envelope with a human-readable message.
func Error(w http.ResponseWriter, status int, message string) {
	Render(w, status, Envelope{Success: false, Message: message})
}

// ValidationError writes a 422 envelope with field-level detail.
func ValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	Render(w, http.StatusUnprocessableEntity, Envelope{Success: false, Message: message, Fields: fields})
}

// Unauthorized writes a 401 envelope: no valid credential was presented.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 envelope: the credential is valid but the role is
// insufficient.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, message)
}

// NotFound writes a 404 envelope.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// Conflict writes a 409 envelope for uniqueness violations.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, message)
}

// Internal writes a 500 envelope with a generic message. The underlying
// error is logged server-side, never returned to the caller.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "an unexpected error occurred")
}
