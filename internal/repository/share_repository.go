package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, link *domain.ShareLink) error {
	query := `
        INSERT INTO share_links (token, owner_id, file_uuid, folder_id, expires_at, require_password, password_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, is_active, created_at`

	err := r.db.QueryRowContext(ctx, query,
		link.Token,
		link.OwnerID,
		link.FileUUID,
		link.FolderID,
		link.ExpiresAt,
		link.RequirePassword,
		link.PasswordHash,
	).Scan(&link.ID, &link.IsActive, &link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// GetByToken returns the link in any state; expiry and activity are
// judged by the service, not filtered here.
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	var link domain.ShareLink
	err := r.db.GetContext(ctx, &link,
		`SELECT * FROM share_links WHERE token = $1`, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share link: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return &link, nil
}

func (r *ShareRepository) Deactivate(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE share_links SET is_active = FALSE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to deactivate share link: %w", err)
	}
	return checkAffected(result, "share link")
}

func (r *ShareRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.ShareLink, error) {
	links := []domain.ShareLink{}
	err := r.db.SelectContext(ctx, &links, `
        SELECT * FROM share_links WHERE owner_id = $1 ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	return links, nil
}
