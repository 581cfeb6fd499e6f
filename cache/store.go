package cache

import (
	"context"
	"sync"
	"time"
)

// Record is the persisted form of a cache entry. Payload holds the JSON
// encoding of the typed payload for Kind at schema Version.
type Record struct {
	Kind     Kind      `json:"kind"`
	Key      string    `json:"key"`
	Version  int       `json:"version"`
	CachedAt time.Time `json:"cached_at"`
	Payload  []byte    `json:"payload"`
}

// Store is the durable backing of a Cache. Implementations must be safe for
// concurrent use.
type Store interface {
	LoadAll(ctx context.Context) ([]Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, kind Kind, key string) error
	Close() error
}

type recordKey struct {
	kind Kind
	key  string
}

// MemoryStore keeps records in process memory. It backs tests and the
// fallback used when no durable store can be opened.
type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record)}
}

func (m *MemoryStore) LoadAll(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey{rec.Kind, rec.Key}] = rec
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, kind Kind, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordKey{kind, key})
	return nil
}

func (m *MemoryStore) Close() error { return nil }
