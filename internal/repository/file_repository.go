package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *FileRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, file *domain.File) error {
	query := `
        INSERT INTO files (uuid, name, owner_id, folder_id, size, file_type, storage_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		file.UUID,
		file.Name,
		file.OwnerID,
		file.FolderID,
		file.Size,
		file.FileType,
		file.StorageKey,
	).Scan(&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetByUUID returns the file regardless of trash state.
func (r *FileRepository) GetByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.GetContext(ctx, &file, `SELECT * FROM files WHERE uuid = $1`, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

// GetActiveByUUID returns the file only if it is not in trash.
func (r *FileRepository) GetActiveByUUID(ctx context.Context, fileUUID uuid.UUID) (*domain.File, error) {
	var file domain.File
	err := r.db.GetContext(ctx, &file,
		`SELECT * FROM files WHERE uuid = $1 AND NOT is_deleted`, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return &file, nil
}

// ListByFolder returns the owner's active files at one tree level;
// folderID nil means the root level.
func (r *FileRepository) ListByFolder(ctx context.Context, ownerID string, folderID *int64) ([]domain.File, error) {
	files := []domain.File{}
	var err error
	if folderID == nil {
		err = r.db.SelectContext(ctx, &files, `
            SELECT * FROM files
            WHERE owner_id = $1 AND folder_id IS NULL AND NOT is_deleted
            ORDER BY name`, ownerID)
	} else {
		err = r.db.SelectContext(ctx, &files, `
            SELECT * FROM files
            WHERE owner_id = $1 AND folder_id = $2 AND NOT is_deleted
            ORDER BY name`, ownerID, *folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// ListRowsByFolder returns every file row under the folder including
// trashed ones. Used by the purge pipeline.
func (r *FileRepository) ListRowsByFolder(ctx context.Context, folderID int64) ([]domain.File, error) {
	files := []domain.File{}
	err := r.db.SelectContext(ctx, &files,
		`SELECT * FROM files WHERE folder_id = $1 ORDER BY uuid`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder files: %w", err)
	}
	return files, nil
}

// ExistsInFolder reports whether the owner already has an active file
// of this name at the given tree level.
func (r *FileRepository) ExistsInFolder(ctx context.Context, ownerID string, folderID *int64, name string) (bool, error) {
	var exists bool
	var err error
	if folderID == nil {
		err = r.db.GetContext(ctx, &exists, `
            SELECT EXISTS (
                SELECT 1 FROM files
                WHERE owner_id = $1 AND folder_id IS NULL AND name = $2 AND NOT is_deleted
            )`, ownerID, name)
	} else {
		err = r.db.GetContext(ctx, &exists, `
            SELECT EXISTS (
                SELECT 1 FROM files
                WHERE owner_id = $1 AND folder_id = $2 AND name = $3 AND NOT is_deleted
            )`, ownerID, *folderID, name)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file name: %w", err)
	}
	return exists, nil
}

func (r *FileRepository) ListStarred(ctx context.Context, ownerID string) ([]domain.File, error) {
	files := []domain.File{}
	err := r.db.SelectContext(ctx, &files, `
        SELECT * FROM files
        WHERE owner_id = $1 AND is_starred AND NOT is_deleted
        ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list starred files: %w", err)
	}
	return files, nil
}

func (r *FileRepository) SetFolder(ctx context.Context, fileUUID uuid.UUID, folderID *int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE files SET folder_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2`, folderID, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("file %s", fileUUID))
}

func (r *FileRepository) Rename(ctx context.Context, fileUUID uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE files SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2`, name, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("file %s", fileUUID))
}

func (r *FileRepository) ToggleStarred(ctx context.Context, fileUUID uuid.UUID) (bool, error) {
	var starred bool
	err := r.db.QueryRowContext(ctx, `
        UPDATE files SET is_starred = NOT is_starred, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1
        RETURNING is_starred`, fileUUID).Scan(&starred)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle star: %w", err)
	}
	return starred, nil
}

func (r *FileRepository) TogglePublic(ctx context.Context, fileUUID uuid.UUID) (bool, error) {
	var public bool
	err := r.db.QueryRowContext(ctx, `
        UPDATE files SET is_public = NOT is_public, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1
        RETURNING is_public`, fileUUID).Scan(&public)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle visibility: %w", err)
	}
	return public, nil
}

// MarkDeletedTx flips the file into trash. Returns false when the file
// was already trashed (or gone), so cascades stay idempotent per node.
func (r *FileRepository) MarkDeletedTx(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID, deletedAt time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
        UPDATE files
        SET is_deleted = TRUE, deleted_at = $1, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $2 AND NOT is_deleted`, deletedAt, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to trash file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *FileRepository) MarkRestoredTx(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, `
        UPDATE files
        SET is_deleted = FALSE, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE uuid = $1 AND is_deleted`, fileUUID)
	if err != nil {
		return false, fmt.Errorf("failed to restore file: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// MarkChildrenDeletedTx trashes every active file directly under the
// folder and returns their ids so the caller can record each one.
func (r *FileRepository) MarkChildrenDeletedTx(ctx context.Context, tx *sqlx.Tx, folderID int64, deletedAt time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, `
        UPDATE files
        SET is_deleted = TRUE, deleted_at = $1, updated_at = CURRENT_TIMESTAMP
        WHERE folder_id = $2 AND NOT is_deleted
        RETURNING uuid`, deletedAt, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to trash folder files: %w", err)
	}
	return ids, nil
}

func (r *FileRepository) MarkChildrenRestoredTx(ctx context.Context, tx *sqlx.Tx, folderID int64) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.SelectContext(ctx, &ids, `
        UPDATE files
        SET is_deleted = FALSE, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE folder_id = $1 AND is_deleted
        RETURNING uuid`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore folder files: %w", err)
	}
	return ids, nil
}

// DeleteRowTx removes the file row for good. Trash records and share
// links referencing it go with it via ON DELETE CASCADE.
func (r *FileRepository) DeleteRowTx(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM files WHERE uuid = $1`, fileUUID)
	if err != nil {
		return fmt.Errorf("failed to delete file row: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("file %s", fileUUID))
}

func checkAffected(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}
