package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestResolveUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.shares.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareFileRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, "shared.txt", payload(10))
	require.NoError(t, err)

	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)
	require.False(t, link.RequirePassword)
	require.Nil(t, link.ExpiresAt)

	resolved, err := env.shares.Resolve(ctx, link.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved.File)
	require.Equal(t, file.UUID, resolved.File.UUID)
	require.Nil(t, resolved.Folder)

	url, err := env.shares.PresignSharedDownload(ctx, link.Token, "any-session")
	require.NoError(t, err)
	require.Contains(t, url, file.StorageKey)
}

func TestShareRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)
	other := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)

	_, err = env.shares.CreateShareLink(ctx, other, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestExpiryTakesPrecedenceOverDeactivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)

	days := 1
	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), &days, "")
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)

	// Expired and deactivated at once: expiry wins.
	_, err = testDB.Exec(`UPDATE share_links SET expires_at = NOW() - INTERVAL '1 hour', is_active = FALSE WHERE token = $1`, link.Token)
	require.NoError(t, err)

	_, err = env.shares.Resolve(ctx, link.Token)
	require.ErrorIs(t, err, domain.ErrShareExpired)
}

func TestDeactivateShare(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)
	other := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)
	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.NoError(t, err)

	err = env.shares.Deactivate(ctx, other, link.Token)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	require.NoError(t, env.shares.Deactivate(ctx, owner, link.Token))
	_, err = env.shares.Resolve(ctx, link.Token)
	require.ErrorIs(t, err, domain.ErrShareInactive)
}

func TestPasswordVerificationIsPerSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)
	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "hunter2")
	require.NoError(t, err)
	require.True(t, link.RequirePassword)

	err = env.shares.VerifyPassword(ctx, link.Token, "wrong", "session-a")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
	require.False(t, env.shares.IsVerified("session-a", link.Token))

	require.NoError(t, env.shares.VerifyPassword(ctx, link.Token, "hunter2", "session-a"))
	require.True(t, env.shares.IsVerified("session-a", link.Token))
	require.False(t, env.shares.IsVerified("session-b", link.Token))

	// Downloads honor the same isolation.
	_, err = env.shares.PresignSharedDownload(ctx, link.Token, "session-b")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
	_, err = env.shares.PresignSharedDownload(ctx, link.Token, "session-a")
	require.NoError(t, err)
}

func TestFolderListingGatedOnPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	folder, err := env.folders.CreateFolder(ctx, owner, "vault", nil)
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, owner, &folder.ID, "secret.txt", payload(1))
	require.NoError(t, err)

	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFolder, strconv.FormatInt(folder.ID, 10), nil, "hunter2")
	require.NoError(t, err)

	// No listing, not even names, before the password is entered.
	_, err = env.shares.ListFolderFiles(ctx, link.Token, "session-a")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)

	require.NoError(t, env.shares.VerifyPassword(ctx, link.Token, "hunter2", "session-a"))
	files, err := env.shares.ListFolderFiles(ctx, link.Token, "session-a")
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Another session still has to verify for itself.
	_, err = env.shares.ListFolderFiles(ctx, link.Token, "session-b")
	require.ErrorIs(t, err, domain.ErrInvalidPassword)
}

func TestVerifyPasswordOnOpenLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)
	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.NoError(t, err)

	err = env.shares.VerifyPassword(ctx, link.Token, "anything", "session-a")
	require.ErrorIs(t, err, domain.ErrNotPasswordProtected)
}

func TestFolderShareListsSubtree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	root, err := env.folders.CreateFolder(ctx, owner, "pub", nil)
	require.NoError(t, err)
	docs, err := env.folders.CreateFolder(ctx, owner, "docs", &root.ID)
	require.NoError(t, err)
	tmp, err := env.folders.CreateFolder(ctx, owner, "tmp", &root.ID)
	require.NoError(t, err)

	_, err = env.files.Upload(ctx, owner, &root.ID, "a.txt", payload(1))
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, owner, &docs.ID, "b.txt", payload(1))
	require.NoError(t, err)
	_, err = env.files.Upload(ctx, owner, &tmp.ID, "c.txt", payload(1))
	require.NoError(t, err)

	// The trashed subtree must be invisible through the share.
	_, err = env.trash.TrashFolder(ctx, owner, tmp.ID)
	require.NoError(t, err)

	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFolder, strconv.FormatInt(root.ID, 10), nil, "")
	require.NoError(t, err)

	files, err := env.shares.ListFolderFiles(ctx, link.Token, "any-session")
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.RelativePath)
	}
	require.ElementsMatch(t, []string{"a.txt", "docs/b.txt"}, paths)
}

func TestShareOfTrashedResourceResolvesNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)
	link, err := env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.NoError(t, err)

	_, err = env.trash.TrashFile(ctx, owner, file.UUID)
	require.NoError(t, err)

	_, err = env.shares.Resolve(ctx, link.Token)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Restore brings the share back to life.
	require.NoError(t, env.trash.RestoreFile(ctx, owner, file.UUID))
	resolved, err := env.shares.Resolve(ctx, link.Token)
	require.NoError(t, err)
	require.Equal(t, file.UUID, resolved.File.UUID)
}

func TestCannotShareForeignOrTrashedResource(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newOwner(t, 10_000, 10_000)

	file, err := env.files.Upload(ctx, owner, nil, fileName(), payload(10))
	require.NoError(t, err)
	_, err = env.trash.TrashFile(ctx, owner, file.UUID)
	require.NoError(t, err)

	_, err = env.shares.CreateShareLink(ctx, owner, domain.ResourceTypeFile, file.UUID.String(), nil, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
