// Package similarity provides the text normalization and token-overlap
// scoring shared by the synthesis clustering step and the federated
// contribution matcher.
//
// The score is the overlap coefficient |A∩B| / min(|A|,|B|) over
// normalized content tokens. Overlap is preferred over plain Jaccard
// because candidate rules often restate the same guidance with extra
// trailing advice ("do not use X" vs "do not use X, use Y instead");
// the shorter statement is fully contained in the longer one and the
// two must land in the same cluster.
package similarity

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// stopwords are function words and imperative glue excluded from the
// content token set. Polarity words (never, not, avoid) are deliberately
// included: whether two rules agree or contradict is decided separately,
// after they cluster together.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "and": {}, "or": {}, "is": {}, "are": {},
	"be": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {},
	"all": {}, "any": {}, "each": {}, "every": {}, "when": {}, "where": {},
	"you": {}, "your": {}, "we": {}, "our": {}, "they": {}, "their": {},
	"always": {}, "never": {}, "do": {}, "dont": {}, "not": {}, "no": {},
	"must": {}, "should": {}, "shall": {}, "may": {}, "can": {},
	"avoid": {}, "use": {}, "using": {}, "instead": {}, "prefer": {},
	"please": {}, "make": {}, "sure": {}, "ensure": {}, "only": {},
	"rather": {}, "than": {}, "via": {}, "from": {}, "into": {}, "by": {},
	"as": {}, "at": {}, "if": {}, "will": {}, "have": {}, "has": {},
}

// Normalize case-folds a rule text for stable comparison and sorting.
func Normalize(s string) string {
	return strings.TrimSpace(fold.String(s))
}

// Tokens splits a rule text into its normalized content tokens, with
// punctuation stripped and stopwords removed. The result is sorted and
// deduplicated so token order in the source text never matters.
func Tokens(s string) []string {
	raw := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '_' && r != '.' && r != '/' && r != '-'
	})

	set := make(map[string]struct{}, len(raw))
	for _, tok := range raw {
		tok = strings.Trim(tok, "._/-")
		if tok == "" {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		set[tok] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	slices.Sort(out)
	return out
}

// Score computes the overlap coefficient between the content token sets
// of two rule texts. Returns a value in [0, 1]; 0 when either side has
// no content tokens.
func Score(a, b string) float64 {
	return ScoreTokens(Tokens(a), Tokens(b))
}

// ScoreTokens is Score over pre-computed token sets (both sorted and
// deduplicated, as returned by Tokens).
func ScoreTokens(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	smaller := min(len(a), len(b))
	return float64(intersection) / float64(smaller)
}
