package similarity

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "for": true, "and": true, "or": true, "not": true,
	"with": true, "that": true, "this": true, "it": true, "its": true,
	"has": true, "have": true, "had": true, "do": true, "does": true,
	"my": true, "your": true, "their": true, "his": true, "her": true,
}

// TokenScorer scores two statements by keyword overlap (Jaccard index over
// normalized, stopword-filtered tokens). Deterministic and dependency-free;
// the default scorer when no embedding backend is configured.
type TokenScorer struct{}

func NewTokenScorer() *TokenScorer {
	return &TokenScorer{}
}

func (s *TokenScorer) Score(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tok := sb.String()
		sb.Reset()
		if len(tok) < 2 || stopwords[tok] {
			return
		}
		tokens[tok] = true
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
