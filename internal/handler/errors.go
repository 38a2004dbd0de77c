package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"nimbusdrive/internal/domain"
)

// writeError maps domain error kinds to HTTP status codes. Unmatched
// errors are logged and reported as 500 without leaking detail.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNotOwner):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrDuplicateName):
		http.Error(w, "Name already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrCyclicMove):
		http.Error(w, "Move would create a cycle", http.StatusConflict)
	case errors.Is(err, domain.ErrQuotaExceeded):
		http.Error(w, "Storage quota exceeded", http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrFileTooLarge):
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrNotInTrash):
		http.Error(w, "Item is not in trash", http.StatusConflict)
	case errors.Is(err, domain.ErrNotPasswordProtected):
		http.Error(w, "Share is not password protected", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidPassword):
		http.Error(w, "Invalid password", http.StatusForbidden)
	case errors.Is(err, domain.ErrShareExpired):
		http.Error(w, "Share link has expired", http.StatusGone)
	case errors.Is(err, domain.ErrShareInactive):
		http.Error(w, "Share link is inactive", http.StatusGone)
	case errors.Is(err, domain.ErrStorageBackend):
		log.Printf("storage backend error: %v", err)
		http.Error(w, "Storage backend failure", http.StatusBadGateway)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
