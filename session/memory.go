package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	rec       *RefreshSession
	expiresAt time.Time
}

type memoryIndex struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// MemoryStore is an in-process [Store] with absolute expiry. State is not shared
// between processes.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	indexes map[string]*memoryIndex
	now     func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		indexes: make(map[string]*memoryIndex),
		now:     time.Now,
	}
}

// SetClock replaces the store clock. Intended for tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	m.now = now
}

func (m *MemoryStore) Put(_ context.Context, rec *RefreshSession, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("put requires a positive ttl")
	}
	if rec == nil || rec.SessionID == "" || rec.SubjectID == "" {
		return errors.New("session id and subject id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.SessionID] = memoryEntry{rec: rec.Clone(), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookupLocked(sessionID)
	if !ok {
		return nil, nil
	}
	return entry.rec.Clone(), nil
}

func (m *MemoryStore) Patch(_ context.Context, sessionID string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookupLocked(sessionID)
	if !ok {
		if p.IfLive {
			return ErrConcurrentUpdate
		}
		return nil
	}
	if p.IfLive && !entry.rec.Live(m.now()) {
		return ErrConcurrentUpdate
	}
	p.apply(entry.rec)
	return nil
}

func (m *MemoryStore) IndexAdd(_ context.Context, subjectID, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexLocked(subjectID)
	if !ok {
		idx = &memoryIndex{members: make(map[string]struct{})}
		m.indexes[subjectID] = idx
	}
	idx.members[sessionID] = struct{}{}
	if ttl > 0 {
		idx.expiresAt = m.now().Add(ttl)
	}
	return nil
}

func (m *MemoryStore) IndexRemove(_ context.Context, subjectID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.indexLocked(subjectID); ok {
		delete(idx.members, sessionID)
		if len(idx.members) == 0 {
			delete(m.indexes, subjectID)
		}
	}
	return nil
}

func (m *MemoryStore) IndexList(_ context.Context, subjectID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.indexLocked(subjectID)
	if !ok {
		return []string{}, nil
	}
	ids := make([]string, 0, len(idx.members))
	for id := range idx.members {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) IndexClear(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, subjectID)
	return nil
}

func (m *MemoryStore) Ping(context.Context) (time.Duration, error) {
	return 0, nil
}

// lookupLocked returns a non-expired entry, evicting it when expired.
func (m *MemoryStore) lookupLocked(sessionID string) (memoryEntry, bool) {
	entry, ok := m.records[sessionID]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.records, sessionID)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *MemoryStore) indexLocked(subjectID string) (*memoryIndex, bool) {
	idx, ok := m.indexes[subjectID]
	if !ok {
		return nil, false
	}
	if !idx.expiresAt.IsZero() && !m.now().Before(idx.expiresAt) {
		delete(m.indexes, subjectID)
		return nil, false
	}
	return idx, true
}
