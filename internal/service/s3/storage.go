package s3

import (
	"context"
	"time"
)

// Storage is the blob backend used by the file, trash and share
// services. Keys are canonical: user_<ownerID>/<fileUUID>, fixed at
// file creation and stored on the file row.
type Storage interface {
	UploadBytes(key string, data []byte) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	// DeleteObject treats a missing object as success so purge retries
	// stay idempotent.
	DeleteObject(key string) error
	PresignGet(ctx context.Context, key string, expires time.Duration, downloadName string) (string, error)
}
