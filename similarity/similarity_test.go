package similarity

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/types"
)

func TestTokenize(t *testing.T) {
	got := Tokenize("The State-Owned utility said 2024 profits rose; it's a re-think -- of pricing.")
	want := []string{"state-owned", "utility", "profits", "rose", "re-think", "pricing"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Tokenize mismatch (-want +got):\n%s", diff)
	}
}

func TestStripMarkup(t *testing.T) {
	in := `<p>Solar <b>panels</b> &amp; batteries</p><script>var tracking = 1;</script><style>p{}</style>`
	got := strings.Join(strings.Fields(StripMarkup(in)), " ")
	assert.Equal(t, "Solar panels & batteries", got)
}

func TestExtractKeywordsRanksByFrequencyThenFirstSeen(t *testing.T) {
	sig := ExtractKeywords("battery solar battery grid solar battery inverter grid")
	assert.Equal(t, Signature{"battery", "solar", "grid", "inverter"}, sig)
}

func TestExtractKeywordsCapsSignature(t *testing.T) {
	var words []string
	for i := 0; i < 40; i++ {
		words = append(words, fmt.Sprintf("word%c%c", 'a'+i/26, 'a'+i%26))
	}
	sig := ExtractKeywords(strings.Join(words, " "))
	require.Len(t, sig, MaxKeywords)
	assert.Equal(t, words[0], sig[0])
	assert.Equal(t, words[MaxKeywords-1], sig[MaxKeywords-1])
}

func TestExtractKeywordsDropsNoise(t *testing.T) {
	sig := ExtractKeywords("<div>The 2025 report said it was up by 10%</div>")
	assert.Empty(t, sig)
}

func TestSimilarityBoundsAndSymmetry(t *testing.T) {
	sigs := []Signature{
		nil,
		{"solar"},
		{"solar", "battery", "grid"},
		{"battery", "grid", "inverter", "tariff"},
		{"football", "league"},
	}
	for _, a := range sigs {
		for _, b := range sigs {
			ab, _ := Similarity(a, b)
			ba, _ := Similarity(b, a)
			assert.InDelta(t, ab, ba, 1e-12, "asymmetric for %v / %v", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
		}
	}

	score, matched := Similarity(Signature{"solar", "battery", "grid"}, Signature{"battery", "grid", "inverter", "tariff"})
	assert.InDelta(t, 2.0/5.0, score, 1e-12)
	assert.Equal(t, []string{"battery", "grid"}, matched)

	score, matched = Similarity(nil, Signature{"solar"})
	assert.Zero(t, score)
	assert.Empty(t, matched)
}

func TestFindRelated(t *testing.T) {
	target := types.Article{ID: "t", Title: "Solar battery storage expands grid capacity"}
	pool := []types.Article{
		target,
		{ID: "weak", Title: "Football league standings shift", Snippet: "solar"},
		{ID: "strong", Title: "Grid capacity grows with solar battery storage"},
		{ID: "medium", Title: "Battery storage prices fall", Snippet: "storage tender"},
		{ID: "excluded", Title: "Solar battery storage grid capacity"},
	}

	got := FindRelated(target, pool, Options{Exclude: map[string]struct{}{"excluded": {}}})
	require.Len(t, got, 2)
	assert.Equal(t, "strong", got[0].Article.ID)
	assert.Equal(t, "medium", got[1].Article.ID)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Score, DefaultMinScore)
		assert.NotEmpty(t, c.Matched)
	}
}

func TestFindRelatedThresholdOptions(t *testing.T) {
	target := types.Article{ID: "t", Title: "Solar battery storage expands grid capacity"}
	pool := []types.Article{
		{ID: "weak", Title: "Football league standings shift", Snippet: "solar"},
		{ID: "strong", Title: "Grid capacity grows with solar battery storage"},
		{ID: "none", Title: "Bakery wins pastry award"},
	}
	ids := func(cs []Candidate) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Article.ID)
		}
		return out
	}

	assert.Equal(t, []string{"strong"}, ids(FindRelated(target, pool, Options{})))
	assert.Equal(t, []string{"strong", "weak"}, ids(FindRelated(target, pool, Options{MinScore: NoMinScore})))
	assert.Empty(t, FindRelated(target, pool, Options{MinScore: 0.99}))

	opts := applyOptionDefaults(Options{})
	assert.Equal(t, DefaultMinScore, opts.MinScore)
	assert.Equal(t, DefaultMaxResults, opts.MaxResults)
	assert.Zero(t, applyOptionDefaults(Options{MinScore: NoMinScore}).MinScore)
}

func TestFindRelatedRespectsLimitAndOrder(t *testing.T) {
	target := types.Article{ID: "t", Title: "alpha beta gamma delta"}
	var pool []types.Article
	for i := 0; i < 10; i++ {
		pool = append(pool, types.Article{ID: fmt.Sprintf("p%d", i), Title: "alpha beta gamma delta"})
	}
	pool = append(pool, types.Article{ID: "partial", Title: "alpha beta unrelated words"})

	got := FindRelated(target, pool, Options{MaxResults: 3})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"p0", "p1", "p2"}, []string{got[0].Article.ID, got[1].Article.ID, got[2].Article.ID})
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestFindRelatedEmptyTarget(t *testing.T) {
	got := FindRelated(types.Article{ID: "t", Title: "the and of"}, []types.Article{{ID: "x", Title: "anything goes here"}}, Options{})
	assert.Empty(t, got)
}
