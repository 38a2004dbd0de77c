package service

import (
	"context"
	"fmt"
	"strings"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

type FolderService struct {
	folderRepo *repository.FolderRepository
	fileRepo   *repository.FileRepository
}

func NewFolderService(folderRepo *repository.FolderRepository, fileRepo *repository.FileRepository) *FolderService {
	return &FolderService{
		folderRepo: folderRepo,
		fileRepo:   fileRepo,
	}
}

func (s *FolderService) CreateFolder(ctx context.Context, ownerID, name string, parentID *int64) (*domain.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("folder name is required")
	}

	if parentID != nil {
		parent, err := s.folderRepo.GetActiveByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.OwnerID != ownerID {
			return nil, fmt.Errorf("folder %d: %w", *parentID, domain.ErrNotOwner)
		}
	}

	exists, err := s.folderRepo.ExistsInParent(ctx, ownerID, parentID, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("folder %q: %w", name, domain.ErrDuplicateName)
	}

	folder := &domain.Folder{
		Name:     name,
		OwnerID:  ownerID,
		ParentID: parentID,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) Get(ctx context.Context, ownerID string, folderID int64) (*domain.Folder, error) {
	folder, err := s.folderRepo.GetActiveByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotOwner)
	}
	return folder, nil
}

// MoveFolder re-parents a folder, rejecting any move that would make
// the folder its own ancestor. The check walks the target's ancestor
// chain; moving into yourself or any descendant fails ErrCyclicMove.
func (s *FolderService) MoveFolder(ctx context.Context, ownerID string, folderID int64, targetID *int64) error {
	folder, err := s.Get(ctx, ownerID, folderID)
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

		if *targetID == folderID {
			return fmt.Errorf("folder %d into itself: %w", folderID, domain.ErrCyclicMove)
		}
		ancestors, err := s.folderRepo.AncestorIDs(ctx, *targetID)
		if err != nil {
			return err
		}
		for _, id := range ancestors {
			if id == folderID {
				return fmt.Errorf("folder %d into its descendant %d: %w", folderID, *targetID, domain.ErrCyclicMove)
			}
		}
	}

	exists, err := s.folderRepo.ExistsInParent(ctx, ownerID, targetID, folder.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("folder %q: %w", folder.Name, domain.ErrDuplicateName)
	}

	return s.folderRepo.SetParent(ctx, folderID, targetID)
}

func (s *FolderService) Rename(ctx context.Context, ownerID string, folderID int64, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("folder name is required")
	}
	folder, err := s.Get(ctx, ownerID, folderID)
	if err != nil {
		return err
	}
	if folder.Name == name {
		return nil
	}

	exists, err := s.folderRepo.ExistsInParent(ctx, ownerID, folder.ParentID, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("folder %q: %w", name, domain.ErrDuplicateName)
	}

	return s.folderRepo.Rename(ctx, folderID, name)
}

func (s *FolderService) ToggleStar(ctx context.Context, ownerID string, folderID int64) (bool, error) {
	if _, err := s.Get(ctx, ownerID, folderID); err != nil {
		return false, err
	}
	return s.folderRepo.ToggleStarred(ctx, folderID)
}

func (s *FolderService) ToggleVisibility(ctx context.Context, ownerID string, folderID int64) (bool, error) {
	if _, err := s.Get(ctx, ownerID, folderID); err != nil {
		return false, err
	}
	return s.folderRepo.TogglePublic(ctx, folderID)
}

// GetContent lists one level of the tree; folderID nil is the root.
func (s *FolderService) GetContent(ctx context.Context, ownerID string, folderID *int64) (*domain.FolderContent, error) {
	content := &domain.FolderContent{}

	if folderID != nil {
		folder, err := s.Get(ctx, ownerID, *folderID)
		if err != nil {
			return nil, err
		}
		content.Folder = folder
	}

	folders, err := s.folderRepo.ListChildren(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListByFolder(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}

	content.Folders = folders
	content.Files = files
	return content, nil
}
