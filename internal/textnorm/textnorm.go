// Package textnorm folds statement text into a comparable form.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Upper uppercases s and strips diacritics, so "Relevé" and "RELEVE" compare
// equal.
func Upper(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(folded)
}

// ContainsAny reports whether the folded text contains any of the folded needles.
func ContainsAny(folded string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(folded, n) {
			return true
		}
	}
	return false
}
