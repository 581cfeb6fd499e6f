package deduplication

import (
	"math/rand"
	"testing"
	"time"

	"newsdesk/types"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func article(id, title, link string, hoursAgo int) types.Article {
	return types.Article{
		ID:          id,
		Title:       title,
		Link:        link,
		PublishedAt: base.Add(-time.Duration(hoursAgo) * time.Hour),
	}
}

func ids(articles []types.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Hello World", "hello world"},
		{"whitespace", "  Hello   World  ", "hello world"},
		{"punctuation", "Breaking: Hello, World!", "breaking hello world"},
		{"only punctuation", "?!...", ""},
		{"unicode quotes", "“Quoted” title", "quoted title"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := normalizeTitle(c.title); got != c.want {
				t.Fatalf("normalizeTitle(%q) = %q; want %q", c.title, got, c.want)
			}
		})
	}
}

func TestDedupeByLinkOrTitle(t *testing.T) {
	cases := []struct {
		name string
		in   []types.Article
		want []string
	}{
		{
			name: "same link different case",
			in: []types.Article{
				article("1", "One", "https://Example.com/a", 1),
				article("2", "Two", " https://example.com/a ", 2),
			},
			want: []string{"1"},
		},
		{
			name: "same title different link",
			in: []types.Article{
				article("1", "Markets Rally!", "https://a.example/1", 1),
				article("2", "markets rally", "https://b.example/2", 2),
			},
			want: []string{"1"},
		},
		{
			name: "empty link never matches",
			in: []types.Article{
				article("1", "First", "", 1),
				article("2", "Second", "", 2),
			},
			want: []string{"1", "2"},
		},
		{
			name: "empty title never matches",
			in: []types.Article{
				article("1", "", "https://a.example/1", 1),
				article("2", "!!", "https://a.example/2", 2),
			},
			want: []string{"1", "2"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ids(Dedupe(c.in))
			if !equalIDs(got, c.want) {
				t.Fatalf("Dedupe() = %v; want %v", got, c.want)
			}
		})
	}
}

func TestNormalizeMergesSortsAndDedupes(t *testing.T) {
	sourceA := []types.Article{
		article("a1", "Old story", "https://a.example/old", 30),
		article("a2", "Fresh story", "https://a.example/fresh", 1),
	}
	sourceB := []types.Article{
		article("b1", "Fresh Story", "https://b.example/fresh", 3),
		article("b2", "Middle story", "https://b.example/mid", 5),
	}

	got := ids(Normalize(sourceA, sourceB))
	want := []string{"a2", "b2", "a1"}
	if !equalIDs(got, want) {
		t.Fatalf("Normalize() = %v; want %v", got, want)
	}
}

func TestSortByPublishedIsStable(t *testing.T) {
	in := []types.Article{
		article("x", "X", "x", 2),
		article("y", "Y", "y", 2),
		article("z", "Z", "z", 1),
	}
	got := ids(SortByPublished(in))
	want := []string{"z", "x", "y"}
	if !equalIDs(got, want) {
		t.Fatalf("SortByPublished() = %v; want %v", got, want)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	titles := []string{"Alpha", "alpha!", "Beta", "Gamma", "", "beta"}
	links := []string{"https://x/1", "HTTPS://X/1", "https://x/2", "", "https://x/3"}

	for round := 0; round < 50; round++ {
		var in []types.Article
		for i := 0; i < 12; i++ {
			in = append(in, types.Article{
				ID:          string(rune('a' + i)),
				Title:       titles[rng.Intn(len(titles))],
				Link:        links[rng.Intn(len(links))],
				PublishedAt: base.Add(-time.Duration(rng.Intn(48)) * time.Hour),
			})
		}

		once := Normalize(in)
		twice := Normalize(once)
		if !equalIDs(ids(once), ids(twice)) {
			t.Fatalf("round %d: not idempotent: %v vs %v", round, ids(once), ids(twice))
		}

		seenLink := map[string]bool{}
		seenTitle := map[string]bool{}
		for _, a := range once {
			if k := normalizeLink(a.Link); k != "" {
				if seenLink[k] {
					t.Fatalf("round %d: duplicate link key %q survived", round, k)
				}
				seenLink[k] = true
			}
			if k := normalizeTitle(a.Title); k != "" {
				if seenTitle[k] {
					t.Fatalf("round %d: duplicate title key %q survived", round, k)
				}
				seenTitle[k] = true
			}
		}
	}
}

func TestFilterByAge(t *testing.T) {
	in := []types.Article{
		article("new", "New", "n", 2),
		article("two-days", "Two", "t", 48),
		article("week", "Week", "w", 24*6),
		article("old", "Old", "o", 24*10),
		{ID: "undated", Title: "Undated"},
	}

	cases := []struct {
		window AgeWindow
		want   []string
	}{
		{WindowNone, []string{"new", "two-days", "week", "old", "undated"}},
		{WindowOneDay, []string{"new", "undated"}},
		{WindowThreeDays, []string{"new", "two-days", "undated"}},
		{WindowSevenDays, []string{"new", "two-days", "week", "undated"}},
	}

	for _, c := range cases {
		t.Run(c.window.String(), func(t *testing.T) {
			got := ids(FilterByAge(in, c.window, base))
			if !equalIDs(got, c.want) {
				t.Fatalf("FilterByAge(%s) = %v; want %v", c.window, got, c.want)
			}
		})
	}
}

func TestParseAgeWindow(t *testing.T) {
	cases := map[string]AgeWindow{
		"":     WindowNone,
		"none": WindowNone,
		"1d":   WindowOneDay,
		"3D":   WindowThreeDays,
		"7d":   WindowSevenDays,
	}
	for in, want := range cases {
		got, err := ParseAgeWindow(in)
		if err != nil || got != want {
			t.Fatalf("ParseAgeWindow(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAgeWindow("2d"); err == nil {
		t.Fatalf("expected error for unsupported window")
	}
}
