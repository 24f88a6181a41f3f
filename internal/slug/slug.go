// Package slug builds URL slugs and media host path segments from display names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips combining marks after canonical decomposition, so "É" becomes "E".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Make returns a lower-case, hyphen separated ASCII slug.
// "Écharpe en Laine" becomes "echarpe-en-laine".
func Make(s string) string {
	return join(s, '-')
}

// Segment is like Make but joins words with underscores. It is used for
// media host folder and file names.
func Segment(s string) string {
	return join(s, '_')
}

func join(s string, sep rune) string {
	var b strings.Builder
	pending := false
	for _, r := range fold(strings.ToLower(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}
