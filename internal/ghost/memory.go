package ghost

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and persistence-disabled runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	ttl     time.Duration
}

// NewMemoryStore creates a memory store with the given TTL; ttl <= 0 uses
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl}
}

// Record stores an entry.
func (m *MemoryStore) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// List returns entries for a symbol, newest first.
func (m *MemoryStore) List(ctx context.Context, symbol string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if symbol != "" && e.Symbol != symbol {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// PruneExpired removes entries older than the TTL.
func (m *MemoryStore) PruneExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.ttl)
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
