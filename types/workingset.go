package types

// WorkingSet is an immutable snapshot of every article currently shown,
// grouped by column. Every article ID belongs to at most one group. Changes
// produce a new WorkingSet and leave the receiver untouched, so a snapshot can
// be shared between goroutines without locking.
type WorkingSet struct {
	order  []string
	groups map[string][]Article
	index  map[string]articleRef
}

type articleRef struct {
	group string
	pos   int
}

// NewWorkingSet returns an empty working set.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{
		groups: make(map[string][]Article),
		index:  make(map[string]articleRef),
	}
}

// Groups returns the group keys in insertion order.
func (ws *WorkingSet) Groups() []string {
	if ws == nil {
		return nil
	}
	return append([]string(nil), ws.order...)
}

// Articles returns a copy of the ordered article list for group.
func (ws *WorkingSet) Articles(group string) ([]Article, bool) {
	if ws == nil {
		return nil, false
	}
	list, ok := ws.groups[group]
	if !ok {
		return nil, false
	}
	return append([]Article(nil), list...), true
}

// Lookup finds an article by ID across all groups.
func (ws *WorkingSet) Lookup(id string) (Article, bool) {
	if ws == nil {
		return Article{}, false
	}
	ref, ok := ws.index[id]
	if !ok {
		return Article{}, false
	}
	return ws.groups[ref.group][ref.pos], true
}

// GroupOf reports which group currently owns the article ID.
func (ws *WorkingSet) GroupOf(id string) (string, bool) {
	if ws == nil {
		return "", false
	}
	ref, ok := ws.index[id]
	return ref.group, ok
}

// All returns every article, group by group, in display order.
func (ws *WorkingSet) All() []Article {
	if ws == nil {
		return nil
	}
	out := make([]Article, 0, len(ws.index))
	for _, g := range ws.order {
		out = append(out, ws.groups[g]...)
	}
	return out
}

// Len returns the number of indexed articles.
func (ws *WorkingSet) Len() int {
	if ws == nil {
		return 0
	}
	return len(ws.index)
}

// WithGroup returns a new working set in which group holds articles. Only the
// reverse-index entries of that group are rebuilt. An article whose ID is
// already owned by a different group, or repeated within the list, is left out
// of the new group.
func (ws *WorkingSet) WithGroup(group string, articles []Article) *WorkingSet {
	next := ws.cloneWithout(group)
	if _, existed := ws.groupsOrNil()[group]; !existed {
		next.order = append(next.order, group)
	}

	kept := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.ID == "" {
			continue
		}
		if _, taken := next.index[a.ID]; taken {
			continue
		}
		next.index[a.ID] = articleRef{group: group, pos: len(kept)}
		kept = append(kept, a)
	}
	next.groups[group] = kept
	return next
}

// WithoutGroup returns a new working set with group and its index entries removed.
func (ws *WorkingSet) WithoutGroup(group string) *WorkingSet {
	next := ws.cloneWithout(group)
	order := next.order[:0]
	for _, g := range next.order {
		if g != group {
			order = append(order, g)
		}
	}
	next.order = order
	return next
}

func (ws *WorkingSet) groupsOrNil() map[string][]Article {
	if ws == nil {
		return nil
	}
	return ws.groups
}

// cloneWithout copies the maps, dropping the article list and index entries
// of group. Article slices of the other groups are shared since they are
// never mutated.
func (ws *WorkingSet) cloneWithout(group string) *WorkingSet {
	next := NewWorkingSet()
	if ws == nil {
		return next
	}
	next.order = append([]string(nil), ws.order...)
	for g, list := range ws.groups {
		if g == group {
			continue
		}
		next.groups[g] = list
	}
	for id, ref := range ws.index {
		if ref.group == group {
			continue
		}
		next.index[id] = ref
	}
	return next
}
