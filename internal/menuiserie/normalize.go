package menuiserie

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases, strips diacritics and collapses separators so that
// "Porte-Fenêtre  2 VANTAUX" and "porte fenetre 2 vantaux" compare equal.
func Normalize(raw string) string {
	folded := strings.ToLower(FoldAccents(raw))
	folded = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '/' || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// FoldAccents removes diacritics: "Fenêtre" becomes "Fenetre".
func FoldAccents(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, raw)
	if err != nil {
		return raw
	}
	return folded
}
