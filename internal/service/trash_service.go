package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service/s3"
)

// Trashed items are purged 30 days after deletion.
const trashRetention = 30 * 24 * time.Hour

type TrashService struct {
	trashRepo   *repository.TrashRepository
	fileRepo    *repository.FileRepository
	folderRepo  *repository.FolderRepository
	profileRepo *repository.ProfileRepository
	storage     s3.Storage
}

func NewTrashService(
	trashRepo *repository.TrashRepository,
	fileRepo *repository.FileRepository,
	folderRepo *repository.FolderRepository,
	profileRepo *repository.ProfileRepository,
	storage s3.Storage,
) *TrashService {
	return &TrashService{
		trashRepo:   trashRepo,
		fileRepo:    fileRepo,
		folderRepo:  folderRepo,
		profileRepo: profileRepo,
		storage:     storage,
	}
}

// TrashFile moves a single active file into trash. The file keeps its
// row, its blob and its quota contribution; only the flags flip and a
// trash record is written.
func (s *TrashService) TrashFile(ctx context.Context, ownerID string, fileUUID uuid.UUID) (*domain.TrashRecord, error) {
	file, err := s.fileRepo.GetActiveByUUID(ctx, fileUUID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != ownerID {
		return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}

	tx, err := s.trashRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	ok, err := s.fileRepo.MarkDeletedTx(ctx, tx, file.UUID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotFound)
	}

	rec := &domain.TrashRecord{
		OwnerID:          ownerID,
		FileUUID:         &file.UUID,
		OriginalFolderID: file.FolderID,
		DeletedAt:        now,
		ScheduledPurgeAt: now.Add(trashRetention),
	}
	if err := s.trashRepo.InsertTx(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trash: %w", err)
	}
	return rec, nil
}

// TrashFolder trashes the folder and every active descendant in one
// transaction. The traversal is an explicit worklist: a stack of
// folder ids plus a visited set, so malformed cycles terminate instead
// of recursing forever. Each trashed node gets its own record with its
// immediate parent as original_folder_id. Descendants that were
// already in trash keep their earlier records and are not descended
// into. Returns the number of nodes trashed.
func (s *TrashService) TrashFolder(ctx context.Context, ownerID string, folderID int64) (int, error) {
	folder, err := s.folderRepo.GetActiveByID(ctx, folderID)
	if err != nil {
		return 0, err
	}
	if folder.OwnerID != ownerID {
		return 0, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotOwner)
	}

	tx, err := s.trashRepo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	sched := now.Add(trashRetention)

	type node struct {
		id     int64
		parent *int64
	}

	stack := []node{{id: folder.ID, parent: folder.ParentID}}
	visited := make(map[int64]bool)
	trashed := 0

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[n.id] {
			continue
		}
		visited[n.id] = true

		ok, err := s.folderRepo.MarkDeletedTx(ctx, tx, n.id, now)
		if err != nil {
			return 0, err
		}
		if !ok {
			// Already in trash from an earlier operation; its record
			// and subtree stand as they are.
			continue
		}

		id := n.id
		rec := &domain.TrashRecord{
			OwnerID:          ownerID,
			FolderID:         &id,
			OriginalFolderID: n.parent,
			DeletedAt:        now,
			ScheduledPurgeAt: sched,
		}
		if err := s.trashRepo.InsertTx(ctx, tx, rec); err != nil {
			return 0, err
		}
		trashed++

		fileIDs, err := s.fileRepo.MarkChildrenDeletedTx(ctx, tx, id, now)
		if err != nil {
			return 0, err
		}
		for i := range fileIDs {
			fileRec := &domain.TrashRecord{
				OwnerID:          ownerID,
				FileUUID:         &fileIDs[i],
				OriginalFolderID: &id,
				DeletedAt:        now,
				ScheduledPurgeAt: sched,
			}
			if err := s.trashRepo.InsertTx(ctx, tx, fileRec); err != nil {
				return 0, err
			}
			trashed++
		}

		children, err := s.folderRepo.ChildIDsTx(ctx, tx, id, true)
		if err != nil {
			return 0, err
		}
		for _, child := range children {
			stack = append(stack, node{id: child, parent: &id})
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit trash: %w", err)
	}

	log.Printf("[TrashService] trashed folder %d for %s: %d nodes", folderID, ownerID, trashed)
	return trashed, nil
}

// RestoreFile flips a trashed file back to active in its original
// place and drops the trash record.
func (s *TrashService) RestoreFile(ctx context.Context, ownerID string, fileUUID uuid.UUID) error {
	file, err := s.fileRepo.GetByUUID(ctx, fileUUID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}
	if !file.IsDeleted {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotInTrash)
	}

	tx, err := s.trashRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := s.fileRepo.MarkRestoredTx(ctx, tx, file.UUID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotInTrash)
	}
	if err := s.trashRepo.DeleteByFileTx(ctx, tx, file.UUID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}
	return nil
}

// RestoreFolder restores the folder and, unconditionally, everything
// beneath it, deleting all their trash records. Same worklist shape as
// TrashFolder. Returns the number of nodes restored.
func (s *TrashService) RestoreFolder(ctx context.Context, ownerID string, folderID int64) (int, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return 0, err
	}
	if folder.OwnerID != ownerID {
		return 0, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotOwner)
	}
	if !folder.IsDeleted {
		return 0, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotInTrash)
	}

	tx, err := s.trashRepo.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stack := []int64{folder.ID}
	visited := make(map[int64]bool)
	restored := 0

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}
		visited[id] = true

		ok, err := s.folderRepo.MarkRestoredTx(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if ok {
			if err := s.trashRepo.DeleteByFolderTx(ctx, tx, id); err != nil {
				return 0, err
			}
			restored++
		}

		fileIDs, err := s.fileRepo.MarkChildrenRestoredTx(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		for _, fid := range fileIDs {
			if err := s.trashRepo.DeleteByFileTx(ctx, tx, fid); err != nil {
				return 0, err
			}
			restored++
		}

		children, err := s.folderRepo.ChildIDsTx(ctx, tx, id, false)
		if err != nil {
			return 0, err
		}
		stack = append(stack, children...)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit restore: %w", err)
	}

	log.Printf("[TrashService] restored folder %d for %s: %d nodes", folderID, ownerID, restored)
	return restored, nil
}

// purgeFile erases one trashed file for good, in three steps that each
// survive a crash or retry:
//  1. claim the record's quota flag and decrement used_storage; the
//     flag makes the decrement happen exactly once across retries
//  2. delete the blob; a missing blob counts as deleted
//  3. delete the file row, which cascades the trash record
//
// Any failure leaves the earlier steps' effects intact and the
// remainder retryable.
func (s *TrashService) purgeFile(ctx context.Context, file *domain.File) error {
	rec, err := s.trashRepo.GetByFile(ctx, file.UUID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	if rec != nil {
		tx, err := s.trashRepo.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		claimed, err := s.trashRepo.ClaimQuotaTx(ctx, tx, rec.ID)
		if err != nil {
			tx.Rollback()
			return err
		}
		if claimed {
			if err := s.profileRepo.AddUsedStorageTx(ctx, tx, file.OwnerID, -file.Size); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit quota reclaim: %w", err)
		}
	}

	if err := s.storage.DeleteObject(file.StorageKey); err != nil {
		return fmt.Errorf("blob delete for %s: %v: %w", file.UUID, err, domain.ErrStorageBackend)
	}

	tx, err := s.trashRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.fileRepo.DeleteRowTx(ctx, tx, file.UUID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}

	log.Printf("[TrashService] purged file %s (%d bytes) for %s", file.UUID, file.Size, file.OwnerID)
	return nil
}

// PurgeFile permanently erases one trashed file.
func (s *TrashService) PurgeFile(ctx context.Context, ownerID string, fileUUID uuid.UUID) error {
	file, err := s.fileRepo.GetByUUID(ctx, fileUUID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
	}
	if !file.IsDeleted {
		return fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotInTrash)
	}
	return s.purgeFile(ctx, file)
}

// PurgeFolder permanently erases a trashed folder subtree. Files purge
// first; a per-file failure is collected and skipped, and a folder row
// is only deleted once its whole subtree is gone, so nothing is ever
// orphaned. Failed items stay in trash for a later retry.
func (s *TrashService) PurgeFolder(ctx context.Context, ownerID string, folderID int64) (*domain.PurgeResult, error) {
	folder, err := s.folderRepo.GetByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if folder.OwnerID != ownerID {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotOwner)
	}
	if !folder.IsDeleted {
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotInTrash)
	}
	return s.purgeFolderTree(ctx, folder.ID)
}

func (s *TrashService) purgeFolderTree(ctx context.Context, rootID int64) (*domain.PurgeResult, error) {
	type node struct {
		id     int64
		parent int64 // 0 for the root of this purge
	}

	// Collect the subtree in pre-order; reverse iteration then visits
	// children before parents.
	nodes := []node{}
	stack := []node{{id: rootID}}
	visited := make(map[int64]bool)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n.id] {
			continue
		}
		visited[n.id] = true
		nodes = append(nodes, n)

		children, err := s.folderRepo.ChildIDs(ctx, n.id, false)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			stack = append(stack, node{id: child, parent: n.id})
		}
	}

	result := &domain.PurgeResult{}
	failed := make(map[int64]bool)

	for _, n := range nodes {
		files, err := s.fileRepo.ListRowsByFolder(ctx, n.id)
		if err != nil {
			return nil, err
		}
		for i := range files {
			if !files[i].IsDeleted {
				// A descendant restored on its own while its parent
				// stayed trashed is live data; it keeps its row, blob
				// and quota, and the folder row above it must survive.
				failed[n.id] = true
				continue
			}
			if err := s.purgeFile(ctx, &files[i]); err != nil {
				log.Printf("[TrashService] purge of file %s failed: %v", files[i].UUID, err)
				failed[n.id] = true
				result.Failed = append(result.Failed, files[i].UUID.String())
				continue
			}
			result.PurgedFiles++
		}
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		n := nodes[i]
		if failed[n.id] {
			failed[n.parent] = true
			result.Failed = append(result.Failed, strconv.FormatInt(n.id, 10))
			continue
		}

		tx, err := s.trashRepo.BeginTx(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := s.trashRepo.DeleteByFolderTx(ctx, tx, n.id); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := s.folderRepo.DeleteRowTx(ctx, tx, n.id); err != nil {
			tx.Rollback()
			log.Printf("[TrashService] purge of folder %d failed: %v", n.id, err)
			failed[n.id] = true
			failed[n.parent] = true
			result.Failed = append(result.Failed, strconv.FormatInt(n.id, 10))
			continue
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit purge: %w", err)
		}
		result.PurgedFolders++
	}

	return result, nil
}

// EmptyTrash purges everything the owner has in trash, continuing past
// failures.
func (s *TrashService) EmptyTrash(ctx context.Context, ownerID string) (*domain.PurgeResult, error) {
	recs, err := s.trashRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := &domain.PurgeResult{}
	for i := range recs {
		s.purgeRecord(ctx, &recs[i], result)
	}

	log.Printf("[TrashService] emptied trash for %s: %d files, %d folders, %d failed",
		ownerID, result.PurgedFiles, result.PurgedFolders, len(result.Failed))
	return result, nil
}

// purgeRecord dispatches one trash record, folding the outcome into
// result. Records whose node vanished under an earlier purge this run
// are skipped silently.
func (s *TrashService) purgeRecord(ctx context.Context, rec *domain.TrashRecord, result *domain.PurgeResult) {
	switch {
	case rec.FileUUID != nil:
		file, err := s.fileRepo.GetByUUID(ctx, *rec.FileUUID)
		if errors.Is(err, domain.ErrNotFound) {
			return
		}
		if err == nil {
			err = s.purgeFile(ctx, file)
		}
		if err != nil {
			log.Printf("[TrashService] purge of file %s failed: %v", *rec.FileUUID, err)
			result.Failed = append(result.Failed, rec.FileUUID.String())
			return
		}
		result.PurgedFiles++

	case rec.FolderID != nil:
		if _, err := s.folderRepo.GetByID(ctx, *rec.FolderID); errors.Is(err, domain.ErrNotFound) {
			return
		}
		sub, err := s.purgeFolderTree(ctx, *rec.FolderID)
		if err != nil {
			log.Printf("[TrashService] purge of folder %d failed: %v", *rec.FolderID, err)
			result.Failed = append(result.Failed, strconv.FormatInt(*rec.FolderID, 10))
			return
		}
		result.PurgedFiles += sub.PurgedFiles
		result.PurgedFolders += sub.PurgedFolders
		result.Failed = append(result.Failed, sub.Failed...)
	}
}

// RunScheduledPurge erases every trash record past its scheduled purge
// time, across all owners. Driven by the sweeper ticker in cmd/main.
func (s *TrashService) RunScheduledPurge(ctx context.Context) (*domain.SweepResult, error) {
	recs, err := s.trashRepo.ListDue(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	result := &domain.PurgeResult{}
	for i := range recs {
		s.purgeRecord(ctx, &recs[i], result)
	}

	sweep := &domain.SweepResult{
		Purged: result.PurgedFiles + result.PurgedFolders,
		Failed: len(result.Failed),
	}
	if sweep.Purged > 0 || sweep.Failed > 0 {
		log.Printf("[TrashService] scheduled purge: %d purged, %d failed", sweep.Purged, sweep.Failed)
	}
	return sweep, nil
}

// ListTrash returns the owner's trash with node names and sizes.
func (s *TrashService) ListTrash(ctx context.Context, ownerID string) ([]domain.TrashEntry, error) {
	return s.trashRepo.ListEntries(ctx, ownerID)
}
