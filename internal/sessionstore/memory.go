package sessionstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
}

// MemoryStore is an in-process Store. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[Key]memoryEntry
	lastSeen map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[Key]memoryEntry),
		lastSeen: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string, key Key) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, key Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.sessions[sessionID]
	if !ok {
		entries = make(map[Key]memoryEntry)
		s.sessions[sessionID] = entries
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	entries[key] = memoryEntry{value: stored, updatedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, keys ...Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(entries, k)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, sessionID string) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sessions[sessionID]
	keys := make([]Key, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) ClearNamespace(_ context.Context, sessionID string, ns Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := namespacePrefix(ns)
	for k := range s.sessions[sessionID] {
		if strings.HasPrefix(string(k), prefix) {
			delete(s.sessions[sessionID], k)
		}
	}
	return nil
}

func (s *MemoryStore) ClearAll(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.lastSeen, sessionID)
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[sessionID] = at
	return nil
}

func (s *MemoryStore) LastSeen(_ context.Context, sessionID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.lastSeen[sessionID]
	return at, ok, nil
}

func (s *MemoryStore) PurgeIdle(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, at := range s.lastSeen {
		if at.Before(before) {
			delete(s.lastSeen, id)
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}
