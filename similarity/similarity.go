package similarity

import (
	"sort"

	"newsdesk/types"
)

const (
	DefaultMinScore   = 0.15
	DefaultMaxResults = 5

	// NoMinScore as Options.MinScore accepts any candidate sharing at least
	// one keyword.
	NoMinScore = -1.0
)

// Candidate is an article from the pool that scored against the target.
type Candidate struct {
	Article types.Article `json:"article"`
	Score   float64       `json:"score"`
	Matched []string      `json:"matched"`
}

// Options controls FindRelated. Zero values fall back to the defaults.
type Options struct {
	// MinScore is the lowest score returned. 0 means DefaultMinScore; a
	// negative value such as NoMinScore disables the threshold.
	MinScore   float64
	MaxResults int
	// Exclude lists article IDs that must never be returned.
	Exclude map[string]struct{}
}

func applyOptionDefaults(o Options) Options {
	switch {
	case o.MinScore == 0:
		o.MinScore = DefaultMinScore
	case o.MinScore < 0:
		o.MinScore = 0
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o
}

// Similarity returns the Jaccard overlap of two signatures and the keywords
// they share, in a's order. An empty signature scores 0 against anything.
func Similarity(a, b Signature) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	inB := make(map[string]struct{}, len(b))
	for _, k := range b {
		inB[k] = struct{}{}
	}

	union := make(map[string]struct{}, len(a)+len(b))
	for _, k := range b {
		union[k] = struct{}{}
	}

	var matched []string
	seen := make(map[string]struct{}, len(a))
	for _, k := range a {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		union[k] = struct{}{}
		if _, ok := inB[k]; ok {
			matched = append(matched, k)
		}
	}

	return float64(len(matched)) / float64(len(union)), matched
}

// FindRelated scores every pool article against target and returns those at or
// above the minimum score, best first, at most MaxResults of them. The target
// itself and excluded IDs are skipped. Equal scores keep pool order.
func FindRelated(target types.Article, pool []types.Article, opts Options) []Candidate {
	return FindRelatedBySignature(target.ID, SignatureOf(target), pool, opts)
}

// FindRelatedBySignature is FindRelated with a precomputed target signature,
// for callers that enrich the target text before scoring.
func FindRelatedBySignature(targetID string, sig Signature, pool []types.Article, opts Options) []Candidate {
	opts = applyOptionDefaults(opts)
	if len(sig) == 0 {
		return nil
	}

	var out []Candidate
	for _, a := range pool {
		if a.ID == targetID {
			continue
		}
		if _, skip := opts.Exclude[a.ID]; skip {
			continue
		}
		score, matched := Similarity(sig, SignatureOf(a))
		if score == 0 || score < opts.MinScore {
			continue
		}
		out = append(out, Candidate{Article: a, Score: score, Matched: matched})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}
