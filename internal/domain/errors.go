package domain

import "errors"

// Error kinds returned by the storage engine. Services wrap them with
// fmt.Errorf("...: %w", Err...) so callers match with errors.Is, and
// handlers map them to HTTP status codes.
var (
	ErrNotOwner             = errors.New("not the resource owner")
	ErrNotFound             = errors.New("resource not found")
	ErrDuplicateName        = errors.New("name already exists at this level")
	ErrCyclicMove           = errors.New("move would create a cycle")
	ErrQuotaExceeded        = errors.New("storage quota exceeded")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrNotInTrash           = errors.New("item is not in trash")
	ErrNotPasswordProtected = errors.New("share link is not password protected")
	ErrInvalidPassword      = errors.New("invalid share password")
	ErrShareExpired         = errors.New("share link has expired")
	ErrShareInactive        = errors.New("share link is inactive")
	ErrStorageBackend       = errors.New("storage backend failure")
)
