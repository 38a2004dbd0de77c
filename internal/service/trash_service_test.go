package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestTrashFileKeepsQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(300))
	require.NoError(t, err)

	rec, err := env.trash.TrashFile(ctx, owner, file.UUID)
	require.NoError(t, err)
	require.NotNil(t, rec.FileUUID)
	require.Equal(t, file.UUID, *rec.FileUUID)
	require.WithinDuration(t, rec.DeletedAt.Add(30*24*time.Hour), rec.ScheduledPurgeAt, time.Minute)

	// Trashed files still count against quota and keep their blob.
	require.EqualValues(t, 300, env.usedStorage(t, owner))
	require.True(t, env.storage.has(file.StorageKey))

	// Gone from active listings.
	content, err := env.folders.GetContent(ctx, owner, nil)
	require.NoError(t, err)
	require.Empty(t, content.Files)

	// Trashing twice is rejected.
	_, err = env.trash.TrashFile(ctx, owner, file.UUID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTrashFolderCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	// A contains B, B contains file X.
	a, err := env.folders.CreateFolder(ctx, owner, "a", nil)
	require.NoError(t, err)
	b, err := env.folders.CreateFolder(ctx, owner, "b", &a.ID)
	require.NoError(t, err)
	x, err := env.files.Upload(ctx, owner, &b.ID, "x.txt", payload(100))
	require.NoError(t, err)

	trashed, err := env.trash.TrashFolder(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, 3, trashed)

	// One record per node, each pointing at its immediate parent.
	var recs []domain.TrashRecord
	require.NoError(t, testDB.Select(&recs, `SELECT * FROM trash_items WHERE owner_id = $1`, owner))
	require.Len(t, recs, 3)

	byFolder := map[int64]domain.TrashRecord{}
	var fileRec *domain.TrashRecord
	for i := range recs {
		if recs[i].FolderID != nil {
			byFolder[*recs[i].FolderID] = recs[i]
		} else {
			fileRec = &recs[i]
		}
	}
	require.Nil(t, byFolder[a.ID].OriginalFolderID)
	require.Equal(t, a.ID, *byFolder[b.ID].OriginalFolderID)
	require.NotNil(t, fileRec)
	require.Equal(t, x.UUID, *fileRec.FileUUID)
	require.Equal(t, b.ID, *fileRec.OriginalFolderID)

	// Quota untouched by the whole cascade.
	require.EqualValues(t, 100, env.usedStorage(t, owner))
}

func TestRestoreFolderCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	a, err := env.folders.CreateFolder(ctx, owner, "a", nil)
	require.NoError(t, err)
	b, err := env.folders.CreateFolder(ctx, owner, "b", &a.ID)
	require.NoError(t, err)
	x, err := env.files.Upload(ctx, owner, &b.ID, "x.txt", payload(100))
	require.NoError(t, err)

	_, err = env.trash.TrashFolder(ctx, owner, a.ID)
	require.NoError(t, err)

	restored, err := env.trash.RestoreFolder(ctx, owner, a.ID)
	require.NoError(t, err)
	require.Equal(t, 3, restored)

	// Everything back in place, no records left.
	got, err := env.files.Get(ctx, owner, x.UUID)
	require.NoError(t, err)
	require.Equal(t, b.ID, *got.FolderID)

	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM trash_items WHERE owner_id = $1`, owner))
	require.Zero(t, count)
}

func TestRestoreFileNotInTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)

	err = env.trash.RestoreFile(ctx, owner, file.UUID)
	require.ErrorIs(t, err, domain.ErrNotInTrash)
}

func TestPurgeFileReclaimsQuotaExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	small, err := env.files.Upload(ctx, owner, nil, fileName(), payload(300))
	require.NoError(t, err)
	big, err := env.files.Upload(ctx, owner, nil, fileName(), payload(500))
	require.NoError(t, err)
	_, err = env.trash.TrashFile(ctx, owner, small.UUID)
	require.NoError(t, err)
	_, err = env.trash.TrashFile(ctx, owner, big.UUID)
	require.NoError(t, err)
	require.EqualValues(t, 800, env.usedStorage(t, owner))

	// First purge attempt: quota reclaimed, then the blob delete fails.
	env.storage.setDeleteFailure(small.StorageKey, true)
	err = env.trash.PurgeFile(ctx, owner, small.UUID)
	require.ErrorIs(t, err, domain.ErrStorageBackend)
	require.EqualValues(t, 500, env.usedStorage(t, owner))

	// The file and its record survive for a retry.
	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM trash_items WHERE file_uuid = $1`, small.UUID))
	require.Equal(t, 1, count)

	// Retry succeeds and must not decrement again.
	env.storage.setDeleteFailure(small.StorageKey, false)
	require.NoError(t, env.trash.PurgeFile(ctx, owner, small.UUID))
	require.EqualValues(t, 500, env.usedStorage(t, owner))
	require.False(t, env.storage.has(small.StorageKey))

	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM files WHERE uuid = $1`, small.UUID))
	require.Zero(t, count)
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM trash_items WHERE file_uuid = $1`, small.UUID))
	require.Zero(t, count)
}

func TestPurgeActiveFileRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)

	err = env.trash.PurgeFile(ctx, owner, file.UUID)
	require.ErrorIs(t, err, domain.ErrNotInTrash)
}

func TestPurgeFolderContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	folder, err := env.folders.CreateFolder(ctx, owner, "doomed", nil)
	require.NoError(t, err)
	good, err := env.files.Upload(ctx, owner, &folder.ID, "good.txt", payload(100))
	require.NoError(t, err)
	bad, err := env.files.Upload(ctx, owner, &folder.ID, "bad.txt", payload(200))
	require.NoError(t, err)

	_, err = env.trash.TrashFolder(ctx, owner, folder.ID)
	require.NoError(t, err)

	env.storage.setDeleteFailure(bad.StorageKey, true)
	result, err := env.trash.PurgeFolder(ctx, owner, folder.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedFiles)
	require.Zero(t, result.PurgedFolders)
	require.Contains(t, result.Failed, bad.UUID.String())

	// The folder row must outlive its unpurged child.
	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM folders WHERE id = $1`, folder.ID))
	require.Equal(t, 1, count)
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM files WHERE uuid = $1`, good.UUID))
	require.Zero(t, count)

	// Retry finishes the job; the good file's quota is not re-reclaimed.
	env.storage.setDeleteFailure(bad.StorageKey, false)
	result, err = env.trash.PurgeFolder(ctx, owner, folder.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedFiles)
	require.Equal(t, 1, result.PurgedFolders)
	require.Empty(t, result.Failed)
	require.EqualValues(t, 0, env.usedStorage(t, owner))
}

func TestPurgeFolderSparesRestoredFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	folder, err := env.folders.CreateFolder(ctx, owner, "mixed", nil)
	require.NoError(t, err)
	kept, err := env.files.Upload(ctx, owner, &folder.ID, "kept.txt", payload(100))
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, owner, &folder.ID, "doomed.txt", payload(200))
	require.NoError(t, err)

	_, err = env.trash.TrashFolder(ctx, owner, folder.ID)
	require.NoError(t, err)

	// One file climbs back out while its parent stays trashed.
	require.NoError(t, env.trash.RestoreFile(ctx, owner, kept.UUID))

	result, err := env.trash.PurgeFolder(ctx, owner, folder.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.PurgedFiles)
	require.Zero(t, result.PurgedFolders)
	require.Contains(t, result.Failed, strconv.FormatInt(folder.ID, 10))

	// The restored file is untouched: row, blob and quota all intact.
	got, err := env.files.Get(ctx, owner, kept.UUID)
	require.NoError(t, err)
	require.Equal(t, kept.UUID, got.UUID)
	require.True(t, env.storage.has(kept.StorageKey))
	require.EqualValues(t, 100, env.usedStorage(t, owner))

	// The folder row survives as its shelter.
	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM folders WHERE id = $1`, folder.ID))
	require.Equal(t, 1, count)
}

func TestEmptyTrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	loose, err := env.files.Upload(ctx, owner, nil, fileName(), payload(100))
	require.NoError(t, err)
	folder, err := env.folders.CreateFolder(ctx, owner, "stuff", nil)
	require.NoError(t, err)
	nested, err := env.files.Upload(ctx, owner, &folder.ID, fileName(), payload(200))
	require.NoError(t, err)

	_, err = env.trash.TrashFile(ctx, owner, loose.UUID)
	require.NoError(t, err)
	_, err = env.trash.TrashFolder(ctx, owner, folder.ID)
	require.NoError(t, err)

	result, err := env.trash.EmptyTrash(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, result.PurgedFiles)
	require.Equal(t, 1, result.PurgedFolders)
	require.Empty(t, result.Failed)

	require.EqualValues(t, 0, env.usedStorage(t, owner))
	require.False(t, env.storage.has(loose.StorageKey))
	require.False(t, env.storage.has(nested.StorageKey))

	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM trash_items WHERE owner_id = $1`, owner))
	require.Zero(t, count)

	// Empty trash on an empty trash is a no-op.
	result, err = env.trash.EmptyTrash(ctx, owner)
	require.NoError(t, err)
	require.Zero(t, result.PurgedFiles+result.PurgedFolders)
}

func TestScheduledPurge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	due, err := env.files.Upload(ctx, owner, nil, fileName(), payload(100))
	require.NoError(t, err)
	fresh, err := env.files.Upload(ctx, owner, nil, fileName(), payload(200))
	require.NoError(t, err)

	_, err = env.trash.TrashFile(ctx, owner, due.UUID)
	require.NoError(t, err)
	_, err = env.trash.TrashFile(ctx, owner, fresh.UUID)
	require.NoError(t, err)

	// Age one record past its retention.
	_, err = testDB.Exec(`UPDATE trash_items SET scheduled_purge_at = NOW() - INTERVAL '1 hour' WHERE file_uuid = $1`, due.UUID)
	require.NoError(t, err)

	sweep, err := env.trash.RunScheduledPurge(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sweep.Purged, 1)

	var count int
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM files WHERE uuid = $1`, due.UUID))
	require.Zero(t, count)

	// The fresh record stays.
	require.NoError(t, testDB.Get(&count, `SELECT COUNT(*) FROM trash_items WHERE file_uuid = $1`, fresh.UUID))
	require.Equal(t, 1, count)
	require.EqualValues(t, 200, env.usedStorage(t, owner))
}

func TestTrashListEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, "doc.txt", payload(42))
	require.NoError(t, err)
	folder, err := env.folders.CreateFolder(ctx, owner, "old", nil)
	require.NoError(t, err)

	_, err = env.trash.TrashFile(ctx, owner, file.UUID)
	require.NoError(t, err)
	_, err = env.trash.TrashFolder(ctx, owner, folder.ID)
	require.NoError(t, err)

	entries, err := env.trash.ListTrash(ctx, owner)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byType := map[string]domain.TrashEntry{}
	for _, e := range entries {
		byType[e.ItemType] = e
	}
	require.Equal(t, "doc.txt", byType["file"].Name)
	require.EqualValues(t, 42, byType["file"].Size)
	require.Equal(t, "old", byType["folder"].Name)
}
