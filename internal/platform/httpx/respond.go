// Package httpx provides JSON response helpers shared by the HTTP handlers.
// Every error the storefront can see is a JSON body with success:false and a
// human-readable error string; stack traces never leave the process.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the uniform error payload.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends the uniform error payload.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Success: false, Error: message})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
