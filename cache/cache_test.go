package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	mu           sync.Mutex
	hits, misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) CacheHit(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits[kind]++
}

func (o *countingObserver) CacheMiss(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses[kind]++
}

type failingStore struct {
	*MemoryStore
	loadErr error
	putErr  error
}

func (f *failingStore) LoadAll(ctx context.Context) ([]Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.LoadAll(ctx)
}

func (f *failingStore) Put(ctx context.Context, rec Record) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, rec)
}

func TestTTLIsLazy(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := Open(ctx, NewMemoryStore(), WithClock(clock))

	_, err := c.Summaries.Set(ctx, "a1", Summary{Text: "summary"})
	require.NoError(t, err)

	clock.Advance(6 * 24 * time.Hour)
	got, ok := c.Summaries.Get("a1")
	require.True(t, ok, "entry should be fresh after 6 days")
	assert.Equal(t, "summary", got.Payload.Text)

	clock.Advance(2 * 24 * time.Hour)
	_, ok = c.Summaries.Get("a1")
	assert.False(t, ok, "entry should be expired after 8 days")
	assert.Equal(t, 1, c.Summaries.Len(), "expired entries are not removed on read")

	stats := c.Stats()
	assert.Equal(t, TierStats{Expired: 1}, stats[KindSummary])
}

func TestSetOverwritesAndRestampsTime(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := Open(ctx, NewMemoryStore(), WithClock(clock))

	_, err := c.Scraped.Set(ctx, "https://x/a", ScrapedContent{PlainText: "one"})
	require.NoError(t, err)
	clock.Advance(8 * 24 * time.Hour)
	_, err = c.Scraped.Set(ctx, "https://x/a", ScrapedContent{PlainText: "two"})
	require.NoError(t, err)

	got, ok := c.Scraped.Get("https://x/a")
	require.True(t, ok)
	assert.Equal(t, "two", got.Payload.PlainText)
	assert.Equal(t, clock.Now(), got.CachedAt)
}

func TestNamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, nil)

	_, err := c.Summaries.Set(ctx, "same-key", Summary{Text: "s"})
	require.NoError(t, err)

	_, ok := c.Chats.Get("same-key")
	assert.False(t, ok)
	_, ok = c.Scraped.Get("same-key")
	assert.False(t, ok)
}

func TestSweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	c := Open(ctx, store, WithClock(clock))

	_, _ = c.Summaries.Set(ctx, "old", Summary{Text: "old"})
	clock.Advance(5 * 24 * time.Hour)
	_, _ = c.Summaries.Set(ctx, "new", Summary{Text: "new"})
	clock.Advance(3 * 24 * time.Hour)

	removed, err := c.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Summaries.Len())

	records, _ := store.LoadAll(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Key)
}

func TestObserverCountsHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	obs := newCountingObserver()
	c := Open(ctx, nil, WithObserver(obs))

	c.Chats.Get("missing")
	_, _ = c.Chats.Set(ctx, "k", ChatThread{})
	c.Chats.Get("k")

	assert.Equal(t, 1, obs.hits["chat"])
	assert.Equal(t, 1, obs.misses["chat"])
}

func TestOpenDiscardsUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()
	now := clock.Now()

	good := []Record{
		{Kind: KindSummary, Key: "ok", Version: summarySchemaVersion, CachedAt: now, Payload: []byte(`{"text":"fine"}`)},
		{Kind: KindChat, Key: "thread", Version: chatSchemaVersion, CachedAt: now, Payload: []byte(`{"messages":[{"role":"user","text":"hi"}]}`)},
	}
	bad := []Record{
		{Kind: KindSummary, Key: "legacy", Version: 0, CachedAt: now, Payload: []byte(`{"text":"old schema"}`)},
		{Kind: KindSummary, Key: "garbled", Version: summarySchemaVersion, CachedAt: now, Payload: []byte(`{"text":`)},
		{Kind: KindSummary, Key: "empty", Version: summarySchemaVersion, CachedAt: now, Payload: []byte(`{"text":""}`)},
		{Kind: KindChat, Key: "badrole", Version: chatSchemaVersion, CachedAt: now, Payload: []byte(`{"messages":[{"role":"system","text":"x"}]}`)},
		{Kind: KindScraped, Key: "undated", Version: scrapedSchemaVersion, Payload: []byte(`{"plain_text":"x"}`)},
	}
	for _, r := range append(good, bad...) {
		require.NoError(t, store.Put(ctx, r))
	}

	c := Open(ctx, store, WithClock(clock))

	got, ok := c.Summaries.Get("ok")
	require.True(t, ok)
	assert.Equal(t, "fine", got.Payload.Text)
	_, ok = c.Chats.Get("thread")
	assert.True(t, ok)

	assert.Equal(t, 1, c.Summaries.Len())
	assert.Equal(t, 1, c.Chats.Len())
	assert.Equal(t, 0, c.Scraped.Len())

	records, _ := store.LoadAll(ctx)
	assert.Len(t, records, len(good), "discarded records should be deleted from the store")
}

func TestOpenWithUnreadableStoreStartsEmpty(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), loadErr: errors.New("disk on fire")}
	c := Open(context.Background(), store)
	assert.Equal(t, 0, c.Summaries.Len())
}

func TestSetKeepsMemoryWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore(), putErr: errors.New("read-only")}
	c := Open(ctx, store)

	_, err := c.Summaries.Set(ctx, "k", Summary{Text: "v"})
	require.Error(t, err)
	_, ok := c.Summaries.Get("k")
	assert.True(t, ok)
}

func TestSQLiteStorePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	clock := newFakeClock()

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	c := Open(ctx, store, WithClock(clock))
	_, err = c.Summaries.Set(ctx, "a1", Summary{
		Text:    "persisted",
		Related: []RelatedRef{{ID: "a2", Title: "Other", Score: 0.4, Matched: []string{"solar"}}},
		Web:     []WebRef{{Title: "Hit", URL: "https://example.com"}},
	})
	require.NoError(t, err)
	_, err = c.Scraped.Set(ctx, "https://x/a", ScrapedContent{PlainText: "body", Length: 4})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	store, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	reopened := Open(ctx, store, WithClock(clock))
	defer reopened.Close()

	got, ok := reopened.Summaries.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "persisted", got.Payload.Text)
	assert.Equal(t, "a2", got.Payload.Related[0].ID)
	assert.True(t, got.CachedAt.Equal(clock.Now()))

	scraped, ok := reopened.Scraped.Get("https://x/a")
	require.True(t, ok)
	assert.Equal(t, 4, scraped.Payload.Length)
}

func TestOpenStoreRecoversFromCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o644))

	store := OpenStore(StoreConfig{Backend: BackendSQLite, SQLitePath: path}, nil)
	defer store.Close()

	_, isSQLite := store.(*SQLiteStore)
	assert.True(t, isSQLite, "expected a recreated sqlite store, got %T", store)

	c := Open(context.Background(), store)
	assert.Equal(t, 0, c.Summaries.Len())

	matches, _ := filepath.Glob(path + ".corrupt-*")
	assert.Len(t, matches, 1)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, NewMemoryStore())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = c.Summaries.Set(ctx, "shared", Summary{Text: "writer"})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if e, ok := c.Summaries.Get("shared"); ok {
					assert.Equal(t, "writer", e.Payload.Text)
				}
			}
		}()
	}
	wg.Wait()

	_, ok := c.Summaries.Get("shared")
	assert.True(t, ok)
}
