// Package normalize reduces raw organization names to a comparable canonical
// form. Every component that compares names must go through Name so two raw
// spellings never diverge due to inconsistent normalization.
package normalize

import (
	"strings"
	"unicode"
)

// Name lower-cases the input, strips punctuation to whitespace, collapses
// whitespace runs, and trims. It is a pure, total function with no failure
// modes, and is safe for non-ASCII input (Arabic secondary names).
func Name(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
