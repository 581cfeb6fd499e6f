// Package ingestion keeps the grouped working set of articles current: it
// fetches each group's feeds, normalizes the result and swaps it onto the
// Board, on demand or on a schedule.
package ingestion

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"newsdesk/deduplication"
	"newsdesk/types"
)

// Board holds the current working set. Readers always see a complete
// snapshot; writers replace one group at a time.
type Board struct {
	set atomic.Pointer[types.WorkingSet]
	mu  sync.Mutex // serializes writers
}

func NewBoard() *Board {
	b := &Board{}
	b.set.Store(types.NewWorkingSet())
	return b
}

// Snapshot returns the current working set. It is never nil and never
// changes after it is returned.
func (b *Board) Snapshot() *types.WorkingSet {
	return b.set.Load()
}

// ReplaceGroup swaps the article list of a group wholesale.
func (b *Board) ReplaceGroup(group string, articles []types.Article) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set.Store(b.set.Load().WithGroup(group, articles))
}

// RemoveGroup drops a group and its articles.
func (b *Board) RemoveGroup(group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set.Store(b.set.Load().WithoutGroup(group))
}

// View returns a group's articles published within window of now. Articles
// without a publication date are always included.
func (b *Board) View(group string, window deduplication.AgeWindow, now time.Time) ([]types.Article, bool) {
	articles, ok := b.Snapshot().Articles(group)
	if !ok {
		return nil, false
	}
	return deduplication.FilterByAge(articles, window, now), true
}

// Find looks an article up by ID.
func (b *Board) Find(id string) (types.Article, bool) {
	return b.Snapshot().Lookup(id)
}

// FindByLink looks an article up by its link, ignoring case and surrounding
// whitespace.
func (b *Board) FindByLink(link string) (types.Article, bool) {
	want := strings.ToLower(strings.TrimSpace(link))
	if want == "" {
		return types.Article{}, false
	}
	for _, a := range b.Snapshot().All() {
		if strings.ToLower(strings.TrimSpace(a.Link)) == want {
			return a, true
		}
	}
	return types.Article{}, false
}

// All returns every article on the board, group by group.
func (b *Board) All() []types.Article {
	return b.Snapshot().All()
}
