package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service/s3"
	"nimbusdrive/internal/session"
)

type ShareService struct {
	shareRepo  *repository.ShareRepository
	fileRepo   *repository.FileRepository
	folderRepo *repository.FolderRepository
	storage    s3.Storage
	sessions   session.Store
}

func NewShareService(
	shareRepo *repository.ShareRepository,
	fileRepo *repository.FileRepository,
	folderRepo *repository.FolderRepository,
	storage s3.Storage,
	sessions session.Store,
) *ShareService {
	return &ShareService{
		shareRepo:  shareRepo,
		fileRepo:   fileRepo,
		folderRepo: folderRepo,
		storage:    storage,
		sessions:   sessions,
	}
}

// ResolvedShare is what an anonymous visitor learns from a token:
// the link plus its resource, one of File or Folder set.
type ResolvedShare struct {
	Link   *domain.ShareLink `json:"link"`
	File   *domain.File      `json:"file,omitempty"`
	Folder *domain.Folder    `json:"folder,omitempty"`
}

// SharedFile is one file reachable through a folder share, with its
// path relative to the shared folder.
type SharedFile struct {
	File         domain.File `json:"file"`
	RelativePath string      `json:"relative_path"`
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func verifiedKey(token string) string {
	return "share_verified_" + token
}

// CreateShareLink mints a capability token for a file (resourceID is
// the uuid) or folder (resourceID is the numeric id). The password
// settings are a full overwrite: a non-empty password protects the
// link, an empty one leaves it open.
func (s *ShareService) CreateShareLink(ctx context.Context, ownerID, resourceType, resourceID string, expiresInDays *int, password string) (*domain.ShareLink, error) {
	link := &domain.ShareLink{OwnerID: ownerID}

	switch resourceType {
	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(resourceID)
		if err != nil {
			return nil, fmt.Errorf("invalid file id %q: %w", resourceID, domain.ErrNotFound)
		}
		file, err := s.fileRepo.GetActiveByUUID(ctx, fileUUID)
		if err != nil {
			return nil, err
		}
		if file.OwnerID != ownerID {
			return nil, fmt.Errorf("file %s: %w", fileUUID, domain.ErrNotOwner)
		}
		link.FileUUID = &file.UUID

	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(resourceID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid folder id %q: %w", resourceID, domain.ErrNotFound)
		}
		folder, err := s.folderRepo.GetActiveByID(ctx, folderID)
		if err != nil {
			return nil, err
		}
		if folder.OwnerID != ownerID {
			return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotOwner)
		}
		link.FolderID = &folder.ID

	default:
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	link.Token = token

	if expiresInDays != nil && *expiresInDays > 0 {
		expiresAt := time.Now().AddDate(0, 0, *expiresInDays)
		link.ExpiresAt = &expiresAt
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hashStr := string(hash)
		link.RequirePassword = true
		link.PasswordHash = &hashStr
	}

	if err := s.shareRepo.Create(ctx, link); err != nil {
		return nil, err
	}

	log.Printf("[ShareService] created %s share %s for %s", resourceType, link.Token, ownerID)
	return link, nil
}

// resolveLink fetches the link and judges it: unknown token is
// ErrNotFound, a passed expires_at is ErrShareExpired no matter what
// is_active says, and only then does deactivation count.
func (s *ShareService) resolveLink(ctx context.Context, token string) (*domain.ShareLink, error) {
	link, err := s.shareRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.Expired(time.Now()) {
		return nil, fmt.Errorf("share %s: %w", token, domain.ErrShareExpired)
	}
	if !link.IsActive {
		return nil, fmt.Errorf("share %s: %w", token, domain.ErrShareInactive)
	}
	return link, nil
}

// Resolve turns a token into the shared resource. A resource that has
// been trashed or purged since sharing reads as not found.
func (s *ShareService) Resolve(ctx context.Context, token string) (*ResolvedShare, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedShare{Link: link}
	if link.FileUUID != nil {
		file, err := s.fileRepo.GetActiveByUUID(ctx, *link.FileUUID)
		if err != nil {
			return nil, err
		}
		resolved.File = file
	} else if link.FolderID != nil {
		folder, err := s.folderRepo.GetActiveByID(ctx, *link.FolderID)
		if err != nil {
			return nil, err
		}
		resolved.Folder = folder
	}
	return resolved, nil
}

// VerifyPassword checks the candidate against the link's hash and, on
// success, marks this session as verified for this link. Other
// sessions are unaffected.
func (s *ShareService) VerifyPassword(ctx context.Context, token, candidate, sessionID string) error {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return err
	}
	if !link.RequirePassword || link.PasswordHash == nil {
		return fmt.Errorf("share %s: %w", token, domain.ErrNotPasswordProtected)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(candidate)); err != nil {
		return fmt.Errorf("share %s: %w", token, domain.ErrInvalidPassword)
	}

	s.sessions.Set(sessionID, verifiedKey(token))
	return nil
}

// IsVerified reports whether this session has already passed the
// link's password. Pure cache read; it never errors.
func (s *ShareService) IsVerified(sessionID, token string) bool {
	return s.sessions.Get(sessionID, verifiedKey(token))
}

// ListFolderFiles walks a shared folder and returns every active file
// beneath it with its relative path. Trashed subtrees are skipped, so
// a visitor never sees into the owner's trash. Protected links are
// gated on password verification before anything is listed.
func (s *ShareService) ListFolderFiles(ctx context.Context, token, sessionID string) ([]SharedFile, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.RequirePassword && !s.IsVerified(sessionID, token) {
		return nil, fmt.Errorf("share %s not verified: %w", token, domain.ErrInvalidPassword)
	}
	if link.FolderID == nil {
		return nil, fmt.Errorf("share %s is not a folder: %w", token, domain.ErrNotFound)
	}
	root, err := s.folderRepo.GetActiveByID(ctx, *link.FolderID)
	if err != nil {
		return nil, err
	}

	type node struct {
		folder  domain.Folder
		relPath string
	}

	shared := []SharedFile{}
	stack := []node{{folder: *root}}
	visited := map[int64]bool{}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[n.folder.ID] {
			continue
		}
		visited[n.folder.ID] = true

		folderID := n.folder.ID
		files, err := s.fileRepo.ListByFolder(ctx, root.OwnerID, &folderID)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			shared = append(shared, SharedFile{
				File:         f,
				RelativePath: path.Join(n.relPath, f.Name),
			})
		}

		children, err := s.folderRepo.ListChildren(ctx, root.OwnerID, &folderID)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			stack = append(stack, node{
				folder:  child,
				relPath: path.Join(n.relPath, child.Name),
			})
		}
	}

	return shared, nil
}

// PresignSharedDownload hands out a download URL for a shared file,
// gated on password verification for protected links.
func (s *ShareService) PresignSharedDownload(ctx context.Context, token, sessionID string) (string, error) {
	link, err := s.resolveLink(ctx, token)
	if err != nil {
		return "", err
	}
	if link.RequirePassword && !s.IsVerified(sessionID, token) {
		return "", fmt.Errorf("share %s not verified: %w", token, domain.ErrInvalidPassword)
	}
	if link.FileUUID == nil {
		return "", fmt.Errorf("share %s is not a file: %w", token, domain.ErrNotFound)
	}

	file, err := s.fileRepo.GetActiveByUUID(ctx, *link.FileUUID)
	if err != nil {
		return "", err
	}

	url, err := s.storage.PresignGet(ctx, file.StorageKey, downloadURLTTL, file.Name)
	if err != nil {
		return "", fmt.Errorf("presign for %s: %v: %w", file.UUID, err, domain.ErrStorageBackend)
	}
	return url, nil
}

// Deactivate kills the link. Owner-only; there is no way back except
// minting a new token.
func (s *ShareService) Deactivate(ctx context.Context, ownerID, token string) error {
	link, err := s.shareRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if link.OwnerID != ownerID {
		return fmt.Errorf("share %s: %w", token, domain.ErrNotOwner)
	}
	return s.shareRepo.Deactivate(ctx, token)
}

func (s *ShareService) ListByOwner(ctx context.Context, ownerID string) ([]domain.ShareLink, error) {
	return s.shareRepo.ListByOwner(ctx, ownerID)
}
