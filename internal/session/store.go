// Package session holds per-visitor flags, currently only share
// password verifications. A flag set in one session is never visible
// from another.
package session

import "sync"

type Store interface {
	Get(sessionID, key string) bool
	Set(sessionID, key string)
	Clear(sessionID string)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]bool)}
}

func (s *MemoryStore) Get(sessionID, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[sessionID][key]
}

func (s *MemoryStore) Set(sessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[sessionID] == nil {
		s.data[sessionID] = make(map[string]bool)
	}
	s.data[sessionID][key] = true
}

func (s *MemoryStore) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
}
