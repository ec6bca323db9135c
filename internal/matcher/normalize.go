package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case and diacritics and reduces text to single-space separated
// tokens of letters and digits, padded with one space on each side so every
// token is bounded by spaces.
func Normalize(text string) string {
	folded := foldDiacritics(text)

	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 1 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSpace = true
	}
	b.WriteByte(' ')

	out := b.String()
	if out == "  " {
		return " "
	}
	return out
}

func foldDiacritics(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// normalizeAlias returns the alias in the same form as Normalize, without padding.
func normalizeAlias(alias string) string {
	return strings.TrimSpace(Normalize(alias))
}
