package service

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

type QuotaService struct {
	profileRepo *repository.ProfileRepository
	planRepo    *repository.PlanRepository
}

func NewQuotaService(profileRepo *repository.ProfileRepository, planRepo *repository.PlanRepository) *QuotaService {
	return &QuotaService{
		profileRepo: profileRepo,
		planRepo:    planRepo,
	}
}

// AdmitUploadTx checks an upload of size bytes against the owner's
// plan inside the caller's transaction. The profile row stays locked
// until the transaction ends, which serializes concurrent admissions
// for the same owner.
func (s *QuotaService) AdmitUploadTx(ctx context.Context, tx *sqlx.Tx, ownerID string, size int64) error {
	limits, err := s.profileRepo.LockLimitsTx(ctx, tx, ownerID)
	if err != nil {
		return err
	}

	if !limits.MaxStorageSize.Valid || !limits.MaxFileSize.Valid {
		return fmt.Errorf("owner %s has no active plan: %w", ownerID, domain.ErrQuotaExceeded)
	}
	if size > limits.MaxFileSize.Int64 {
		return fmt.Errorf("%d bytes over per-file limit %d: %w",
			size, limits.MaxFileSize.Int64, domain.ErrFileTooLarge)
	}
	if limits.UsedStorage+size > limits.MaxStorageSize.Int64 {
		return fmt.Errorf("%d used + %d requested over limit %d: %w",
			limits.UsedStorage, size, limits.MaxStorageSize.Int64, domain.ErrQuotaExceeded)
	}
	return nil
}

func (s *QuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	profile, err := s.profileRepo.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	info := &domain.QuotaInfo{UsedSpace: profile.UsedStorage}
	if profile.PlanID == nil {
		return info, nil
	}

	plan, err := s.planRepo.GetByID(ctx, *profile.PlanID)
	if err != nil {
		return nil, err
	}

	info.PlanName = plan.Name
	info.TotalSpace = plan.MaxStorageSize
	// Usage over 100% stays visible after a plan downgrade; available
	// space is clamped instead.
	info.UsagePercent = float64(profile.UsedStorage) / float64(plan.MaxStorageSize) * 100
	if avail := plan.MaxStorageSize - profile.UsedStorage; avail > 0 {
		info.AvailableSpace = avail
	}
	return info, nil
}

// RecomputeUsedStorage reconciles the counter from the file rows. It
// is only ever called explicitly, never as a read side effect.
func (s *QuotaService) RecomputeUsedStorage(ctx context.Context, ownerID string) (int64, error) {
	if _, err := s.profileRepo.GetOrCreate(ctx, ownerID); err != nil {
		return 0, err
	}

	used, err := s.profileRepo.Recompute(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	log.Printf("[QuotaService] recomputed used storage for %s: %d bytes", ownerID, used)
	return used, nil
}

func (s *QuotaService) CreatePlan(ctx context.Context, plan *domain.StoragePlan) error {
	if plan.MaxStorageSize <= 0 || plan.MaxFileSize <= 0 {
		return fmt.Errorf("plan limits must be positive")
	}
	if plan.MaxFileSize > plan.MaxStorageSize {
		return fmt.Errorf("per-file limit cannot exceed total limit")
	}
	return s.planRepo.Create(ctx, plan)
}

func (s *QuotaService) ListPlans(ctx context.Context, onlyActive bool) ([]domain.StoragePlan, error) {
	return s.planRepo.List(ctx, onlyActive)
}

func (s *QuotaService) SetPlanActive(ctx context.Context, planID int64, active bool) error {
	return s.planRepo.SetActive(ctx, planID, active)
}

// AssignPlan switches the owner to another plan. Usage above the new
// limit is allowed to stand; it only blocks further uploads.
func (s *QuotaService) AssignPlan(ctx context.Context, ownerID string, planID int64) error {
	if _, err := s.planRepo.GetByID(ctx, planID); err != nil {
		return err
	}
	if _, err := s.profileRepo.GetOrCreate(ctx, ownerID); err != nil {
		return err
	}
	return s.profileRepo.SetPlan(ctx, ownerID, &planID)
}
