package middleware

import (
	"encoding/json"
	"net/http"
)

// APIError is the JSON body of every error response.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// WriteJSON writes payload as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes an [APIError] with status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, APIError{StatusCode: status, Message: message})
}
