package domain

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	UUID       uuid.UUID  `json:"uuid" db:"uuid"`
	Name       string     `json:"name" db:"name"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	FolderID   *int64     `json:"folder_id,omitempty" db:"folder_id"`
	Size       int64      `json:"size" db:"size"`
	FileType   string     `json:"file_type" db:"file_type"`
	StorageKey string     `json:"-" db:"storage_key"`
	IsStarred  bool       `json:"is_starred" db:"is_starred"`
	IsPublic   bool       `json:"is_public" db:"is_public"`
	IsDeleted  bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
