package quizengine

import (
	"context"
	"sync"
)

// SnapshotStore persists session snapshots under their session id. The
// engine assumes nothing about the storage technology beyond this
// key-value contract, and assumes single-writer-at-a-time access per
// session id (the caller serializes concurrent requests).
type SnapshotStore interface {
	// Save stores a snapshot, replacing any previous one.
	Save(ctx context.Context, sessionID string, snapshot []byte) error

	// Load returns the stored snapshot, or ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// Delete removes a stored snapshot. Deleting an absent session is
	// not an error.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-process SnapshotStore for tests and the CLI.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(snapshot))
	copy(stored, snapshot)
	m.snapshots[sessionID] = stored
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot, ok := m.snapshots[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]byte, len(snapshot))
	copy(out, snapshot)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, sessionID)
	return nil
}
