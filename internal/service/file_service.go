package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service/s3"
)

const downloadURLTTL = 15 * time.Minute

type FileService struct {
	fileRepo    *repository.FileRepository
	folderRepo  *repository.FolderRepository
	profileRepo *repository.ProfileRepository
	quota       *QuotaService
	storage     s3.Storage
}

func NewFileService(
	fileRepo *repository.FileRepository,
	folderRepo *repository.FolderRepository,
	profileRepo *repository.ProfileRepository,
	quota *QuotaService,
	storage s3.Storage,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		folderRepo:  folderRepo,
		profileRepo: profileRepo,
		quota:       quota,
		storage:     storage,
	}
}

// Upload admits the file against the owner's quota, records it and
// stores the blob, all atomically: admission, the file row and the
// used_storage increment share one transaction, and the blob is put
// before commit so a backend failure rolls everything back.
func (s *FileService) Upload(ctx context.Context, ownerID string, folderID *int64, name string, data []byte) (*domain.File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("file name is required")
	}

	if folderID != nil {
		folder, err := s.folderRepo.GetActiveByID(ctx, *folderID)
		if err != nil {
			return nil, err
		}
		if folder.OwnerID != ownerID {
			return nil, fmt.Errorf("folder %d: %w", *folderID, domain.ErrNotOwner)
		}
	}

	exists, err := s.fileRepo.ExistsInFolder(ctx, ownerID, folderID, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("file %q: %w", name, domain.ErrDuplicateName)
	}

	size := int64(len(data))

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.quota.AdmitUploadTx(ctx, tx, ownerID, size); err != nil {
		return nil, err
	}

	fileUUID := uuid.New()
	file := &domain.File{
		UUID:       fileUUID,
		Name:       name,
		OwnerID:    ownerID,
		FolderID:   folderID,
		Size:       size,
		FileType:   strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")),
		StorageKey: fmt.Sprintf("user_%s/%s", ownerID, fileUUID),
	}

	if err := s.fileRepo.CreateTx(ctx, tx, file); err != nil {
		return nil, err
	}
	if err := s.profileRepo.AddUsedStorageTx(ctx, tx, ownerID, size); err != nil {
		return nil, err
	}

	if err := s.storage.UploadBytes(file.StorageKey, data); err != nil {
		return nil, fmt.Errorf("blob put for %s: %v: %w", file.UUID, err, domain.ErrStorageBackend)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upload: %w", err)
	}

	log.Printf("[FileService] uploaded %s (%d bytes) for %s", file.UUID, size, ownerID)
	return file, nil
}

func (s *FileService) Get(ctx context.Context, ownerID string, fileUUID uuid.UUID) (*domain.File, error) {
	file, err := s.fileRepo.GetActiveByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}
	return file, nil
}

// MoveFile relocates a file to another folder, or to the root when
// targetID is nil. A target owned by someone else is rejected before
// its existence is revealed.
func (s *FileService) MoveFile(ctx context.Context, ownerID string, fileUUID uuid.UUID, targetID *int64) error {
	file, err := s.Get(ctx, ownerID, fileUUID)
	if err != nil {
		return err
	}

	if targetID != nil {
		target, err := s.folderRepo.GetActiveByID(ctx, *targetID)
		if err != nil {
			return err
		}
		if target.OwnerID != ownerID {
			return fmt.Errorf("folder %d: %w", *targetID, domain.ErrNotOwner)
		}
	}

	return s.fileRepo.SetFolder(ctx, file.UUID, targetID)
}

// DeleteFileHard removes an active file permanently, bypassing trash.
// Counter decrement, blob delete and row delete commit together; if
// the blob delete fails nothing changes.
func (s *FileService) DeleteFileHard(ctx context.Context, ownerID string, fileUUID uuid.UUID) error {
	file, err := s.fileRepo.GetByUUID(ctx, fileUUID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}

	tx, err := s.fileRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.profileRepo.AddUsedStorageTx(ctx, tx, ownerID, -file.Size); err != nil {
		return err
	}

	if err := s.storage.DeleteObject(file.StorageKey); err != nil {
		return fmt.Errorf("blob delete for %s: %v: %w", file.UUID, err, domain.ErrStorageBackend)
	}

	if err := s.fileRepo.DeleteRowTx(ctx, tx, file.UUID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	log.Printf("[FileService] hard-deleted %s (%d bytes) for %s", file.UUID, file.Size, ownerID)
	return nil
}

func (s *FileService) Rename(ctx context.Context, ownerID string, fileUUID uuid.UUID, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name is required")
	}
	file, err := s.Get(ctx, ownerID, fileUUID)
	if err != nil {
		return err
	}
	return s.fileRepo.Rename(ctx, file.UUID, name)
}

func (s *FileService) ToggleStar(ctx context.Context, ownerID string, fileUUID uuid.UUID) (bool, error) {
	file, err := s.Get(ctx, ownerID, fileUUID)
	if err != nil {
		return false, err
	}
	return s.fileRepo.ToggleStarred(ctx, file.UUID)
}

func (s *FileService) ToggleVisibility(ctx context.Context, ownerID string, fileUUID uuid.UUID) (bool, error) {
	file, err := s.Get(ctx, ownerID, fileUUID)
	if err != nil {
		return false, err
	}
	return s.fileRepo.TogglePublic(ctx, file.UUID)
}

func (s *FileService) ListStarred(ctx context.Context, ownerID string) ([]domain.File, error) {
	return s.fileRepo.ListStarred(ctx, ownerID)
}

// PresignDownload hands out a short-lived URL for the blob. Public
// files are downloadable by anyone who knows the uuid.
func (s *FileService) PresignDownload(ctx context.Context, ownerID string, fileUUID uuid.UUID) (string, error) {
	file, err := s.fileRepo.GetActiveByUUID(ctx, fileUUID)
	if err != nil {
		return "", err
	}
	if file.OwnerID != ownerID && !file.IsPublic {
		return "", fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}

	url, err := s.storage.PresignGet(ctx, file.StorageKey, downloadURLTTL, file.Name)
	if err != nil {
		return "", fmt.Errorf("presign for %s: %v: %w", file.UUID, err, domain.ErrStorageBackend)
	}
	return url, nil
}
