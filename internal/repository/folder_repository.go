package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type FolderRepository struct {
	db *sqlx.DB
}

func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	query := `
        INSERT INTO folders (name, owner_id, parent_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		folder.Name,
		folder.OwnerID,
		folder.ParentID,
	).Scan(&folder.ID, &folder.CreatedAt, &folder.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %q: %w", folder.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return nil
}

// GetByID returns the folder regardless of trash state.
func (r *FolderRepository) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder, `SELECT * FROM folders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

func (r *FolderRepository) GetActiveByID(ctx context.Context, id int64) (*domain.Folder, error) {
	var folder domain.Folder
	err := r.db.GetContext(ctx, &folder,
		`SELECT * FROM folders WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return &folder, nil
}

// ListChildren returns the owner's active subfolders at one tree
// level; parentID nil means the root level.
func (r *FolderRepository) ListChildren(ctx context.Context, ownerID string, parentID *int64) ([]domain.Folder, error) {
	folders := []domain.Folder{}
	var err error
	if parentID == nil {
		err = r.db.SelectContext(ctx, &folders, `
            SELECT * FROM folders
            WHERE owner_id = $1 AND parent_id IS NULL AND NOT is_deleted
            ORDER BY name`, ownerID)
	} else {
		err = r.db.SelectContext(ctx, &folders, `
            SELECT * FROM folders
            WHERE owner_id = $1 AND parent_id = $2 AND NOT is_deleted
            ORDER BY name`, ownerID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// ChildIDs returns the ids of direct subfolders. With onlyActive set,
// trashed subfolders are skipped (used by the trash cascade so it does
// not descend into independently trashed subtrees).
func (r *FolderRepository) ChildIDs(ctx context.Context, parentID int64, onlyActive bool) ([]int64, error) {
	return childIDs(ctx, r.db, parentID, onlyActive)
}

func (r *FolderRepository) ChildIDsTx(ctx context.Context, tx *sqlx.Tx, parentID int64, onlyActive bool) ([]int64, error) {
	return childIDs(ctx, tx, parentID, onlyActive)
}

func childIDs(ctx context.Context, q sqlx.QueryerContext, parentID int64, onlyActive bool) ([]int64, error) {
	query := `SELECT id FROM folders WHERE parent_id = $1`
	if onlyActive {
		query += ` AND NOT is_deleted`
	}

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("failed to list child folders: %w", err)
	}
	return ids, nil
}

// AncestorIDs walks from the folder up to its root and returns every
// ancestor id, the folder itself excluded.
func (r *FolderRepository) AncestorIDs(ctx context.Context, folderID int64) ([]int64, error) {
	query := `
        WITH RECURSIVE ancestors AS (
            SELECT id, parent_id FROM folders WHERE id = $1
            UNION ALL
            SELECT f.id, f.parent_id
            FROM folders f
            JOIN ancestors a ON f.id = a.parent_id
        )
        SELECT id FROM ancestors WHERE id <> $1`

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, folderID); err != nil {
		return nil, fmt.Errorf("failed to get ancestors: %w", err)
	}
	return ids, nil
}

func (r *FolderRepository) ExistsInParent(ctx context.Context, ownerID string, parentID *int64, name string) (bool, error) {
	var exists bool
	var err error
	if parentID == nil {
		err = r.db.GetContext(ctx, &exists, `
            SELECT EXISTS (
                SELECT 1 FROM folders
                WHERE owner_id = $1 AND parent_id IS NULL AND name = $2 AND NOT is_deleted
            )`, ownerID, name)
	} else {
		err = r.db.GetContext(ctx, &exists, `
            SELECT EXISTS (
                SELECT 1 FROM folders
                WHERE owner_id = $1 AND parent_id = $2 AND name = $3 AND NOT is_deleted
            )`, ownerID, *parentID, name)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check folder name: %w", err)
	}
	return exists, nil
}

func (r *FolderRepository) SetParent(ctx context.Context, folderID int64, parentID *int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE folders SET parent_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`, parentID, folderID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %d: %w", folderID, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to move folder: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("folder %d", folderID))
}

func (r *FolderRepository) Rename(ctx context.Context, folderID int64, name string) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE folders SET name = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`, name, folderID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder %d: %w", folderID, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("folder %d", folderID))
}

func (r *FolderRepository) ToggleStarred(ctx context.Context, folderID int64) (bool, error) {
	var starred bool
	err := r.db.QueryRowContext(ctx, `
        UPDATE folders SET is_starred = NOT is_starred, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING is_starred`, folderID).Scan(&starred)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle star: %w", err)
	}
	return starred, nil
}

func (r *FolderRepository) TogglePublic(ctx context.Context, folderID int64) (bool, error) {
	var public bool
	err := r.db.QueryRowContext(ctx, `
        UPDATE folders SET is_public = NOT is_public, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING is_public`, folderID).Scan(&public)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("failed to toggle visibility: %w", err)
	}
	return public, nil
}

func (r *FolderRepository) MarkDeletedTx(ctx context.Context, tx *sqlx.Tx, folderID int64, deletedAt time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
        UPDATE folders
        SET is_deleted = TRUE, deleted_at = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND NOT is_deleted`, deletedAt, folderID)
	if err != nil {
		return false, fmt.Errorf("failed to trash folder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *FolderRepository) MarkRestoredTx(ctx context.Context, tx *sqlx.Tx, folderID int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `
        UPDATE folders
        SET is_deleted = FALSE, deleted_at = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND is_deleted`, folderID)
	if err != nil {
		return false, fmt.Errorf("failed to restore folder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// DeleteRowTx removes an emptied folder row. Fails if any file or
// subfolder row still references it.
func (r *FolderRepository) DeleteRowTx(ctx context.Context, tx *sqlx.Tx, folderID int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, folderID)
	if err != nil {
		return fmt.Errorf("failed to delete folder row: %w", err)
	}
	return checkAffected(result, fmt.Sprintf("folder %d", folderID))
}
