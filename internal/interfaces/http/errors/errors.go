// Package errors renders error responses for the HTTP layer.
//
// OAuth2 endpoints answer with the RFC 6749 error body; the client admin API
// uses ErrorResponse.
package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error body of the client admin API
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError names one rejected request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Admin API error codes
const (
	ErrCodeConflict       = "ERR_001"
	ErrCodeAuthentication = "ERR_002"
	ErrCodeValidation     = "ERR_003"
	ErrCodeInternal       = "ERR_004"
	ErrCodeNotFound       = "ERR_005"
	ErrCodeForbidden      = "ERR_006"
	ErrCodeRateLimited    = "ERR_007"
)

func RespondWithError(w http.ResponseWriter, code string, message string, details []FieldError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// FieldErrors collects validation failures in the order they were found
type FieldErrors []FieldError

func (f *FieldErrors) Add(field, message string) {
	*f = append(*f, FieldError{Field: field, Message: message})
}

func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}
