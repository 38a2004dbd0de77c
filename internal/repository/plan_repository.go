package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type PlanRepository struct {
	db *sqlx.DB
}

func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.StoragePlan) error {
	query := `
        INSERT INTO storage_plans (name, max_storage_size, max_file_size, price, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		plan.Name,
		plan.MaxStorageSize,
		plan.MaxFileSize,
		plan.Price,
		plan.IsActive,
	).Scan(&plan.ID, &plan.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("plan %q: %w", plan.Name, domain.ErrDuplicateName)
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*domain.StoragePlan, error) {
	var plan domain.StoragePlan
	err := r.db.GetContext(ctx, &plan, `SELECT * FROM storage_plans WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

func (r *PlanRepository) List(ctx context.Context, onlyActive bool) ([]domain.StoragePlan, error) {
	query := `SELECT * FROM storage_plans ORDER BY price, id`
	if onlyActive {
		query = `SELECT * FROM storage_plans WHERE is_active ORDER BY price, id`
	}

	plans := []domain.StoragePlan{}
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *PlanRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE storage_plans SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("plan %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
