package cache

import (
    "context"
    "sync"
    "time"

    "ratecalc/internal/rates"
)

// Entry is a stored snapshot and the time it was stored.
type Entry struct {
    Snapshot rates.Snapshot `json:"snapshot"`
    StoredAt time.Time      `json:"storedAt"`
}

// Store keeps the latest snapshot. Get reports false when nothing usable is
// stored. ttl is the retention hint a store may use to expire the entry.
type Store interface {
    Get(ctx context.Context) (Entry, bool, error)
    Set(ctx context.Context, e Entry, ttl time.Duration) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
    mu        sync.RWMutex
    entry     Entry
    ok        bool
    expiresAt time.Time
    now       func() time.Time
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{now: time.Now} }

func (m *MemoryStore) Get(context.Context) (Entry, bool, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if !m.ok { return Entry{}, false, nil }
    if !m.expiresAt.IsZero() && !m.now().Before(m.expiresAt) { return Entry{}, false, nil }
    return m.entry, true, nil
}

// Set replaces the entry. A non-positive ttl keeps it until replaced.
func (m *MemoryStore) Set(_ context.Context, e Entry, ttl time.Duration) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.entry, m.ok = e, true
    m.expiresAt = time.Time{}
    if ttl > 0 { m.expiresAt = m.now().Add(ttl) }
    return nil
}
