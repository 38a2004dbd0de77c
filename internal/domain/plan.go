package domain

import "time"

type StoragePlan struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	MaxStorageSize int64     `json:"max_storage_size" db:"max_storage_size"`
	MaxFileSize    int64     `json:"max_file_size" db:"max_file_size"`
	Price          float64   `json:"price" db:"price"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type UserProfile struct {
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	PlanID      *int64    `json:"plan_id,omitempty" db:"plan_id"`
	UsedStorage int64     `json:"used_storage" db:"used_storage"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// QuotaInfo is the read model for the quota endpoint. UsagePercent is
// intentionally not capped at 100: after a plan downgrade usage above
// the limit must stay visible.
type QuotaInfo struct {
	PlanName       string  `json:"plan_name"`
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}
