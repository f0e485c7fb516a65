package httpapi

import (
	"encoding/json"
	"net/http"
)

// FragmentError is the body of a failed fragment request.
type FragmentError struct {
	Error string `json:"error"`
}

// MutationFailure is the body of a failed create, update or delete.
type MutationFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Errors  any    `json:"errors,omitempty"`
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

func WriteFragmentError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, &FragmentError{Error: message})
}

func WriteMutationFailure(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, &MutationFailure{Error: message})
}

// WriteValidationErrors answers 400 with per-field messages.
func WriteValidationErrors(w http.ResponseWriter, fieldErrors map[string][]string) error {
	return WriteJSON(w, http.StatusBadRequest, &MutationFailure{Errors: fieldErrors})
}
