package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrashRecord marks one trashed node. Every node of a trashed subtree
// gets its own record; original_folder_id is the node's immediate
// parent at trash time. quota_reclaimed guards the purge pipeline's
// quota decrement so a retried purge never decrements twice.
type TrashRecord struct {
	ID               int64      `json:"id" db:"id"`
	OwnerID          string     `json:"owner_id" db:"owner_id"`
	FileUUID         *uuid.UUID `json:"file_uuid,omitempty" db:"file_uuid"`
	FolderID         *int64     `json:"folder_id,omitempty" db:"folder_id"`
	OriginalFolderID *int64     `json:"original_folder_id,omitempty" db:"original_folder_id"`
	DeletedAt        time.Time  `json:"deleted_at" db:"deleted_at"`
	ScheduledPurgeAt time.Time  `json:"scheduled_purge_at" db:"scheduled_purge_at"`
	QuotaReclaimed   bool       `json:"-" db:"quota_reclaimed"`
}

// TrashEntry is the listing view joined with the node's name and size.
type TrashEntry struct {
	ID               int64     `json:"id" db:"id"`
	ItemID           string    `json:"item_id" db:"item_id"`
	ItemType         string    `json:"item_type" db:"item_type"`
	Name             string    `json:"name" db:"name"`
	Size             int64     `json:"size" db:"size"`
	DeletedAt        time.Time `json:"deleted_at" db:"deleted_at"`
	ScheduledPurgeAt time.Time `json:"scheduled_purge_at" db:"scheduled_purge_at"`
}

// PurgeResult aggregates a folder purge or an empty-trash run. Failed
// holds the item ids that could not be purged this round; they stay in
// trash and remain retryable.
type PurgeResult struct {
	PurgedFiles   int      `json:"purged_files"`
	PurgedFolders int      `json:"purged_folders"`
	Failed        []string `json:"failed,omitempty"`
}

type SweepResult struct {
	Purged int `json:"purged"`
	Failed int `json:"failed"`
}
