package factstore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes text to NFD and drops combining marks,
// folding accented characters to their base form for fuzzy duplicate
// detection.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHash lowercases, diacritic-folds, and collapses whitespace in
// text, producing the key used for fuzzy duplicate detection.
func normalizeHash(text string) string {
	folded, _, err := transform.String(diacriticStripper, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastWasSpace := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			if !lastWasSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return strings.TrimSpace(b.String())
}
