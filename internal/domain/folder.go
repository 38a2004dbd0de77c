package domain

import "time"

type Folder struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	ParentID  *int64     `json:"parent_id,omitempty" db:"parent_id"`
	IsStarred bool       `json:"is_starred" db:"is_starred"`
	IsPublic  bool       `json:"is_public" db:"is_public"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// FolderContent is one level of the tree: the folder itself (nil for
// the root level) plus its active children.
type FolderContent struct {
	Folder  *Folder  `json:"folder,omitempty"`
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}
