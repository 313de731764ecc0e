// Package arabic implements the deterministic Arabic text normalization and
// keyword extraction used by the LISTEN stage of the reasoning pipeline.
package arabic

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies the fixed-order normalization used for matching:
// strip diacritics, unify hamza variants, unify ya/alef-maqsura, unify
// ta-marbuta/ha, collapse whitespace. The original text is never mutated
// by callers, who retain it separately for display.
func Normalize(text string) string {
	stripped := stripDiacritics(text)
	unified := unifyLetters(stripped)
	return collapseWhitespace(unified)
}

// stripDiacritics removes Arabic combining marks (tashkeel: fatha, damma,
// kasra, sukun, shadda, tanwin) by decomposing to NFKD and dropping
// non-spacing marks, then passing the result through NFKD once more.
func stripDiacritics(text string) string {
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFKD.String(b.String())
}

// letterUnifications is applied in order after diacritic stripping.
var letterUnifications = []struct {
	from []rune
	to   rune
}{
	{[]rune{'أ', 'إ', 'آ'}, 'ا'}, // hamza variants -> bare alef
	{[]rune{'ى'}, 'ي'},          // alef-maqsura -> ya
	{[]rune{'ة'}, 'ه'},          // ta-marbuta -> ha (treated as equivalent for match)
}

func unifyLetters(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		replaced := r
		for _, u := range letterUnifications {
			for _, from := range u.from {
				if r == from {
					replaced = u.to
				}
			}
		}
		b.WriteRune(replaced)
	}
	return b.String()
}

func collapseWhitespace(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
