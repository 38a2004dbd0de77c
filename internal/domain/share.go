package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ResourceTypeFile   = "file"
	ResourceTypeFolder = "folder"
)

type ShareLink struct {
	ID              int64      `json:"id" db:"id"`
	Token           string     `json:"token" db:"token"`
	OwnerID         string     `json:"owner_id" db:"owner_id"`
	FileUUID        *uuid.UUID `json:"file_uuid,omitempty" db:"file_uuid"`
	FolderID        *int64     `json:"folder_id,omitempty" db:"folder_id"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	RequirePassword bool       `json:"require_password" db:"require_password"`
	PasswordHash    *string    `json:"-" db:"password_hash"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

func (l *ShareLink) ResourceType() string {
	if l.FileUUID != nil {
		return ResourceTypeFile
	}
	return ResourceTypeFolder
}

// Expired is computed from expires_at; it takes precedence over
// is_active when a link is reported to callers.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
