// Package httputil writes the response envelope shared by every endpoint of
// the verification backend: {success, data, message, errorCode}.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Envelope wraps every response body.
type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Error codes reported in errorCode.
const (
	CodeUploadError  = "UPLOAD_ERROR"
	CodeStatusError  = "STATUS_ERROR"
	CodeQueryError   = "QUERY_ERROR"
	CodeDeleteError  = "DELETE_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "UNAVAILABLE"
)

// APIError is a failure a handler reports to the caller.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an APIError. Most backend failures are answered with 400
// and an envelope, whatever their cause.
func NewError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func BadRequest(code, message string) *APIError {
	return NewError(http.StatusBadRequest, code, message)
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// best-effort fallback; don't override status for the caller
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// WriteOK writes a success envelope around data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteError translates err into a failure envelope. Errors that are not an
// APIError are reported as internal errors without their message.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		WriteJSON(w, apiErr.Status, Envelope{
			Success:   false,
			Message:   apiErr.Message,
			ErrorCode: apiErr.Code,
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, Envelope{
		Success:   false,
		Message:   "internal server error",
		ErrorCode: CodeInternal,
	})
}
