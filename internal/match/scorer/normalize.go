package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips diacritics: NFD decomposition, removal of combining
// marks, NFC recomposition. OCR output and citizen input disagree about
// accents far too often to compare names byte-wise.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and removes diacritics. Returns the input unchanged (but
// lowercased) if the transform fails on malformed UTF-8.
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// tokens splits a folded string into comparison tokens, dropping anything
// that is not a letter or digit.
func tokens(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeDocNumber uppercases and strips separators so "12 AB 34567" and
// "12-ab-34567" compare equal.
func normalizeDocNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// levenshtein is the classic two-row edit distance over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// similarity maps edit distance onto [0,1]: 1 for equal strings, 0 when
// every rune differs.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	sim := 1 - float64(levenshtein(a, b))/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// tokenSimilarity compares two token sets symmetrically: each token is
// matched against its best counterpart, and the two directional averages are
// averaged. Token order ("Jean Dupont" vs "DUPONT Jean") does not matter.
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return (directionalSimilarity(a, b) + directionalSimilarity(b, a)) / 2
}

func directionalSimilarity(from, to []string) float64 {
	var total float64
	for _, t := range from {
		best := 0.0
		for _, u := range to {
			if sim := similarity(t, u); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(from))
}
