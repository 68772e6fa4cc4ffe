// Package httpapi renders controller outcomes for an HTTP transport.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string) error {
	return WriteJSON(w, status, &ErrorEnvelope{Code: code, Message: message})
}
