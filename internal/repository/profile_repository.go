package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nimbusdrive/internal/domain"
)

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// GetOrCreate returns the owner's profile, creating it with the default
// free plan on first touch.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, ownerID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.db.GetContext(ctx, &profile,
		`SELECT * FROM user_profiles WHERE owner_id = $1`, ownerID)
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	err = r.db.GetContext(ctx, &profile, `
        INSERT INTO user_profiles (owner_id, plan_id)
        VALUES ($1, (SELECT id FROM storage_plans WHERE is_active AND price = 0 ORDER BY id LIMIT 1))
        ON CONFLICT (owner_id) DO UPDATE SET updated_at = user_profiles.updated_at
        RETURNING *`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return &profile, nil
}

// OwnerLimits is the profile row joined with its plan, used by the
// upload admission check.
type OwnerLimits struct {
	OwnerID        string        `db:"owner_id"`
	UsedStorage    int64         `db:"used_storage"`
	MaxStorageSize sql.NullInt64 `db:"max_storage_size"`
	MaxFileSize    sql.NullInt64 `db:"max_file_size"`
}

// LockLimitsTx loads the owner's limits inside tx with the profile row
// locked FOR UPDATE. The lock serializes concurrent admissions for the
// same owner until the surrounding transaction commits. The profile is
// created first if it does not exist yet.
func (r *ProfileRepository) LockLimitsTx(ctx context.Context, tx *sqlx.Tx, ownerID string) (*OwnerLimits, error) {
	query := `
        SELECT p.owner_id, p.used_storage, sp.max_storage_size, sp.max_file_size
        FROM user_profiles p
        LEFT JOIN storage_plans sp ON sp.id = p.plan_id
        WHERE p.owner_id = $1
        FOR UPDATE OF p`

	var limits OwnerLimits
	err := tx.GetContext(ctx, &limits, query, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, `
            INSERT INTO user_profiles (owner_id, plan_id)
            VALUES ($1, (SELECT id FROM storage_plans WHERE is_active AND price = 0 ORDER BY id LIMIT 1))
            ON CONFLICT (owner_id) DO NOTHING`, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		err = tx.GetContext(ctx, &limits, query, ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	return &limits, nil
}

// AddUsedStorageTx shifts used_storage by delta, clamped at zero.
func (r *ProfileRepository) AddUsedStorageTx(ctx context.Context, tx *sqlx.Tx, ownerID string, delta int64) error {
	result, err := tx.ExecContext(ctx, `
        UPDATE user_profiles
        SET used_storage = GREATEST(0, used_storage + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`, delta, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update used storage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", ownerID, domain.ErrNotFound)
	}
	return nil
}

// Recompute reconciles used_storage from the file rows themselves.
// Trashed files still have rows and still count; purged files do not.
func (r *ProfileRepository) Recompute(ctx context.Context, ownerID string) (int64, error) {
	var used int64
	err := r.db.QueryRowContext(ctx, `
        UPDATE user_profiles
        SET used_storage = COALESCE((SELECT SUM(size) FROM files WHERE owner_id = $1), 0),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $1
        RETURNING used_storage`, ownerID).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("profile %s: %w", ownerID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to recompute used storage: %w", err)
	}
	return used, nil
}

func (r *ProfileRepository) SetPlan(ctx context.Context, ownerID string, planID *int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE user_profiles
        SET plan_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`, planID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile %s: %w", ownerID, domain.ErrNotFound)
	}
	return nil
}
