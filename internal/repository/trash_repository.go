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

type TrashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

func (r *TrashRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *TrashRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, rec *domain.TrashRecord) error {
	query := `
        INSERT INTO trash_items (owner_id, file_uuid, folder_id, original_folder_id, deleted_at, scheduled_purge_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id`

	err := tx.QueryRowContext(ctx, query,
		rec.OwnerID,
		rec.FileUUID,
		rec.FolderID,
		rec.OriginalFolderID,
		rec.DeletedAt,
		rec.ScheduledPurgeAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert trash record: %w", err)
	}
	return nil
}

func (r *TrashRepository) GetByFile(ctx context.Context, fileUUID uuid.UUID) (*domain.TrashRecord, error) {
	var rec domain.TrashRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM trash_items WHERE file_uuid = $1`, fileUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trash record for file %s: %w", fileUUID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trash record: %w", err)
	}
	return &rec, nil
}

func (r *TrashRepository) GetByFolder(ctx context.Context, folderID int64) (*domain.TrashRecord, error) {
	var rec domain.TrashRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT * FROM trash_items WHERE folder_id = $1`, folderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("trash record for folder %d: %w", folderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trash record: %w", err)
	}
	return &rec, nil
}

func (r *TrashRepository) DeleteByFileTx(ctx context.Context, tx *sqlx.Tx, fileUUID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trash_items WHERE file_uuid = $1`, fileUUID); err != nil {
		return fmt.Errorf("failed to delete trash record: %w", err)
	}
	return nil
}

func (r *TrashRepository) DeleteByFolderTx(ctx context.Context, tx *sqlx.Tx, folderID int64) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trash_items WHERE folder_id = $1`, folderID); err != nil {
		return fmt.Errorf("failed to delete trash record: %w", err)
	}
	return nil
}

func (r *TrashRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.TrashRecord, error) {
	recs := []domain.TrashRecord{}
	err := r.db.SelectContext(ctx, &recs, `
        SELECT * FROM trash_items WHERE owner_id = $1 ORDER BY deleted_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash records: %w", err)
	}
	return recs, nil
}

// ListDue returns records whose scheduled purge time has passed.
func (r *TrashRepository) ListDue(ctx context.Context, now time.Time) ([]domain.TrashRecord, error) {
	recs := []domain.TrashRecord{}
	err := r.db.SelectContext(ctx, &recs, `
        SELECT * FROM trash_items WHERE scheduled_purge_at <= $1 ORDER BY scheduled_purge_at, id`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due trash records: %w", err)
	}
	return recs, nil
}

// ClaimQuotaTx marks the record's quota as reclaimed and reports
// whether this call won the claim. A retried or concurrent purge gets
// false and must not decrement used_storage again.
func (r *TrashRepository) ClaimQuotaTx(ctx context.Context, tx *sqlx.Tx, recordID int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `
        UPDATE trash_items SET quota_reclaimed = TRUE
        WHERE id = $1 AND NOT quota_reclaimed`, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to claim quota: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

// ListEntries joins records with their node's name and size for the
// trash listing.
func (r *TrashRepository) ListEntries(ctx context.Context, ownerID string) ([]domain.TrashEntry, error) {
	query := `
        SELECT t.id,
               f.uuid::text AS item_id,
               'file' AS item_type,
               f.name,
               f.size,
               t.deleted_at,
               t.scheduled_purge_at
        FROM trash_items t
        JOIN files f ON f.uuid = t.file_uuid
        WHERE t.owner_id = $1
        UNION ALL
        SELECT t.id,
               fo.id::text AS item_id,
               'folder' AS item_type,
               fo.name,
               0 AS size,
               t.deleted_at,
               t.scheduled_purge_at
        FROM trash_items t
        JOIN folders fo ON fo.id = t.folder_id
        WHERE t.owner_id = $1
        ORDER BY deleted_at DESC, id`

	entries := []domain.TrashEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list trash entries: %w", err)
	}
	return entries, nil
}
