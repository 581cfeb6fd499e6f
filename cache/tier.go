package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Entry is a cached payload with the time it was stored.
type Entry[T any] struct {
	Key      string    `json:"key"`
	Payload  T         `json:"payload"`
	CachedAt time.Time `json:"cached_at"`
}

// Tier is one typed namespace of the cache. Readers load an immutable map
// snapshot; writers copy it, apply their change and swap the pointer.
type Tier[T any] struct {
	kind     Kind
	version  int
	ttl      time.Duration
	clock    Clock
	store    Store
	observer Observer
	logger   *zap.Logger
	validate func(T) error

	mu      sync.Mutex // serializes writers
	entries atomic.Pointer[map[string]Entry[T]]
}

func newTier[T any](kind Kind, version int, validate func(T) error, o options, store Store) *Tier[T] {
	t := &Tier[T]{
		kind:     kind,
		version:  version,
		ttl:      o.ttl,
		clock:    o.clock,
		store:    store,
		observer: o.observer,
		logger:   o.logger.With(zap.String("kind", string(kind))),
		validate: validate,
	}
	empty := make(map[string]Entry[T])
	t.entries.Store(&empty)
	return t
}

// Get returns the entry for key unless it is missing or older than the TTL.
// Expired entries are left in place.
func (t *Tier[T]) Get(key string) (Entry[T], bool) {
	e, ok := (*t.entries.Load())[key]
	if !ok || t.expired(e) {
		t.observer.CacheMiss(string(t.kind))
		return Entry[T]{}, false
	}
	t.observer.CacheHit(string(t.kind))
	return e, true
}

// Set stores payload under key, stamped with the current clock time. The
// in-memory entry is always updated; the returned error reports a failure to
// persist it.
func (t *Tier[T]) Set(ctx context.Context, key string, payload T) (Entry[T], error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry[T]{}, fmt.Errorf("encode %s entry %q: %w", t.kind, key, err)
	}

	// the store write happens under mu so memory and store agree on the
	// last writer
	t.mu.Lock()
	defer t.mu.Unlock()

	e := Entry[T]{Key: key, Payload: payload, CachedAt: t.clock.Now()}
	next := t.copyEntries(1)
	next[key] = e
	t.entries.Store(&next)

	rec := Record{Kind: t.kind, Key: key, Version: t.version, CachedAt: e.CachedAt, Payload: data}
	if err := t.store.Put(ctx, rec); err != nil {
		return e, fmt.Errorf("persist %s entry %q: %w", t.kind, key, err)
	}
	return e, nil
}

// Delete removes key from memory and from the store.
func (t *Tier[T]) Delete(ctx context.Context, key string) error {
	t.mu.Lock()
	next := t.copyEntries(0)
	delete(next, key)
	t.entries.Store(&next)
	t.mu.Unlock()

	if err := t.store.Delete(ctx, t.kind, key); err != nil {
		return fmt.Errorf("delete %s entry %q: %w", t.kind, key, err)
	}
	return nil
}

// Len returns the number of entries held, expired ones included.
func (t *Tier[T]) Len() int {
	return len(*t.entries.Load())
}

// Sweep drops expired entries and returns how many were removed.
func (t *Tier[T]) Sweep(ctx context.Context) (int, error) {
	t.mu.Lock()
	current := *t.entries.Load()
	next := make(map[string]Entry[T], len(current))
	var expired []string
	for k, e := range current {
		if t.expired(e) {
			expired = append(expired, k)
			continue
		}
		next[k] = e
	}
	t.entries.Store(&next)
	t.mu.Unlock()

	var firstErr error
	for _, k := range expired {
		if err := t.store.Delete(ctx, t.kind, k); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("sweep %s entry %q: %w", t.kind, k, err)
		}
	}
	return len(expired), firstErr
}

func (t *Tier[T]) stats() TierStats {
	s := TierStats{}
	for _, e := range *t.entries.Load() {
		if t.expired(e) {
			s.Expired++
		} else {
			s.Fresh++
		}
	}
	return s
}

// load replaces the tier contents with the decodable records of its kind and
// returns the keys of records that had to be discarded.
func (t *Tier[T]) load(records []Record) []string {
	next := make(map[string]Entry[T])
	var discarded []string
	for _, rec := range records {
		if rec.Kind != t.kind {
			continue
		}
		payload, err := t.decode(rec)
		if err != nil {
			t.logger.Warn("discarding cached record", zap.String("key", rec.Key), zap.Error(err))
			discarded = append(discarded, rec.Key)
			continue
		}
		if prev, ok := next[rec.Key]; ok && prev.CachedAt.After(rec.CachedAt) {
			continue
		}
		next[rec.Key] = Entry[T]{Key: rec.Key, Payload: payload, CachedAt: rec.CachedAt}
	}

	t.mu.Lock()
	t.entries.Store(&next)
	t.mu.Unlock()
	return discarded
}

func (t *Tier[T]) decode(rec Record) (T, error) {
	var payload T
	if rec.Version != t.version {
		return payload, fmt.Errorf("schema version %d, want %d", rec.Version, t.version)
	}
	if rec.Key == "" || rec.CachedAt.IsZero() {
		return payload, errInvalidPayload
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if t.validate != nil {
		if err := t.validate(payload); err != nil {
			return payload, err
		}
	}
	return payload, nil
}

func (t *Tier[T]) expired(e Entry[T]) bool {
	return t.clock.Now().Sub(e.CachedAt) > t.ttl
}

// copyEntries must be called with mu held.
func (t *Tier[T]) copyEntries(extra int) map[string]Entry[T] {
	current := *t.entries.Load()
	next := make(map[string]Entry[T], len(current)+extra)
	for k, v := range current {
		next[k] = v
	}
	return next
}
