// Package slug derives URL path segments from display names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generate lowercases name, folds accented Latin letters to their base
// letter, and collapses every run of remaining characters outside [a-z0-9]
// into one hyphen. Leading and trailing hyphens are dropped, so a name with
// no usable characters yields "".
//
//	"Acme Trading Co."  -> "acme-trading-co"
//	"Café Déco Ürünleri" -> "cafe-deco-urunleri"
//	"東京"               -> ""
func Generate(name string) string {
	// Transformers carry state; build one per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if gap && b.Len() > 0 {
				b.WriteByte('-')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}
