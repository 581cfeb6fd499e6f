// Package similarity ranks articles by keyword overlap. It is a bag-of-words
// heuristic: signatures are small frequency-ranked keyword lists and scores
// are Jaccard overlaps between them.
package similarity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"newsdesk/types"
)

const (
	// MaxKeywords bounds the length of a signature.
	MaxKeywords = 15
	// MinTokenLength is the shortest token kept, in characters.
	MinTokenLength = 3
)

// Signature is a frequency-ranked keyword list, most frequent first.
type Signature []string

// ExtractKeywords builds the signature of a piece of text, which may contain
// HTML markup.
func ExtractKeywords(text string) Signature {
	tokens := Tokenize(StripMarkup(text))

	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	// order is first-seen order; a stable sort keeps it for equal counts
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return Signature(order)
}

// SignatureOf extracts the signature of an article from its title and body.
func SignatureOf(a types.Article) Signature {
	return ExtractKeywords(a.Title + "\n" + a.Text())
}

// Tokenize lower-cases text, strips punctuation except hyphens inside a word,
// and returns the tokens that survive the length, numeric and stop-word filters.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		case r == '\'' || r == '’':
			return -1
		default:
			return ' '
		}
	}, text)

	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if utf8.RuneCountInString(f) < MinTokenLength {
			continue
		}
		if isNumeric(f) || isStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// StripMarkup returns the text content of an HTML fragment. Script and style
// contents are dropped. Plain text passes through with entities decoded.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was read
			return sb.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript:
				skip++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript:
				if skip > 0 {
					skip--
				}
			}
			sb.WriteByte(' ')
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
