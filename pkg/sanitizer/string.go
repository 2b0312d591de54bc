package sanitizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// FoldName returns the matching key for a person or property name: case
// folded, diacritics removed, punctuation dropped and whitespace collapsed.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return TrimAndNormalize(mapped)
}

// NamesEqual reports whether two names share the same FoldName key.
func NamesEqual(a, b string) bool {
	fa := FoldName(a)
	return fa != "" && fa == FoldName(b)
}

// FuzzyMatch reports whether every token of query appears as a prefix of
// some token in candidate, so "maple st" matches "12 Maple Street".
func FuzzyMatch(query, candidate string) bool {
	qTokens := strings.Fields(FoldName(query))
	if len(qTokens) == 0 {
		return true
	}
	cTokens := strings.Fields(FoldName(candidate))

	for _, q := range qTokens {
		found := false
		for _, c := range cTokens {
			if strings.HasPrefix(c, q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
