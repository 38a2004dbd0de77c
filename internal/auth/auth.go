// Package auth extracts request identity. Authentication itself lives
// in the gateway fronting this service; it injects the verified owner
// id into each request, so all we do here is read it.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	ownerHeader   = "X-Owner-ID"
	sessionCookie = "drive_session"
)

var ErrUnauthorized = errors.New("missing owner identity")

// OwnerID returns the authenticated owner of the request.
func OwnerID(r *http.Request) (string, error) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		return "", ErrUnauthorized
	}
	return ownerID, nil
}

// EnsureSession returns the visitor's session id, minting one on the
// first anonymous request. Share password verifications are keyed on
// it.
func EnsureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().AddDate(0, 0, 7),
		HttpOnly: true,
	})
	return id
}
