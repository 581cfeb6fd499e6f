package deduplication

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"newsdesk/types"
)

// AgeWindow limits how old an article may be to remain visible.
type AgeWindow int

const (
	WindowNone AgeWindow = iota
	WindowOneDay
	WindowThreeDays
	WindowSevenDays
)

// ParseAgeWindow accepts "", "none", "1d", "3d" and "7d".
func ParseAgeWindow(s string) (AgeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "all":
		return WindowNone, nil
	case "1d", "24h":
		return WindowOneDay, nil
	case "3d":
		return WindowThreeDays, nil
	case "7d", "1w":
		return WindowSevenDays, nil
	default:
		return WindowNone, fmt.Errorf("unknown age window %q", s)
	}
}

// Duration returns the window length, or zero for WindowNone.
func (w AgeWindow) Duration() time.Duration {
	switch w {
	case WindowOneDay:
		return 24 * time.Hour
	case WindowThreeDays:
		return 3 * 24 * time.Hour
	case WindowSevenDays:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

func (w AgeWindow) String() string {
	switch w {
	case WindowOneDay:
		return "1d"
	case WindowThreeDays:
		return "3d"
	case WindowSevenDays:
		return "7d"
	default:
		return "none"
	}
}

// Normalize merges per-source article lists into one newest-first sequence
// with duplicates removed. Lists are expected to come from successful fetches
// only; a failed source simply contributes nothing.
func Normalize(lists ...[]types.Article) []types.Article {
	return Dedupe(SortByPublished(Merge(lists...)))
}

// Merge concatenates the lists in the order given.
func Merge(lists ...[]types.Article) []types.Article {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	merged := make([]types.Article, 0, total)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return merged
}

// SortByPublished returns a copy ordered by publish time, newest first.
// Articles with equal timestamps keep their relative order.
func SortByPublished(articles []types.Article) []types.Article {
	sorted := append([]types.Article(nil), articles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	return sorted
}

// Dedupe drops every article whose link key or title key was already seen
// earlier in the sequence. The first occurrence wins. An empty key never
// causes a drop.
func Dedupe(articles []types.Article) []types.Article {
	seenLinks := make(map[string]struct{}, len(articles))
	seenTitles := make(map[string]struct{}, len(articles))
	out := make([]types.Article, 0, len(articles))

	for _, a := range articles {
		linkKey := normalizeLink(a.Link)
		titleKey := normalizeTitle(a.Title)

		if linkKey != "" {
			if _, dup := seenLinks[linkKey]; dup {
				continue
			}
		}
		if titleKey != "" {
			if _, dup := seenTitles[titleKey]; dup {
				continue
			}
		}

		if linkKey != "" {
			seenLinks[linkKey] = struct{}{}
		}
		if titleKey != "" {
			seenTitles[titleKey] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// FilterByAge drops articles published before now minus the window. Articles
// with no publish time are kept since their age is unknown.
func FilterByAge(articles []types.Article, window AgeWindow, now time.Time) []types.Article {
	d := window.Duration()
	if d == 0 {
		return append([]types.Article(nil), articles...)
	}
	cutoff := now.Add(-d)
	out := make([]types.Article, 0, len(articles))
	for _, a := range articles {
		if !a.PublishedAt.IsZero() && a.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func normalizeLink(link string) string {
	return strings.ToLower(strings.TrimSpace(link))
}

func normalizeTitle(t string) string {
	t = strings.ToLower(t)
	t = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, t)
	// collapse multiple whitespace
	return strings.Join(strings.Fields(t), " ")
}
