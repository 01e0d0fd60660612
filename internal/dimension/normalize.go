package dimension

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// normalizeName canonicalizes a display name for map keying:
// lowercase, accents stripped (NFD → remove Mn → NFC), inner whitespace
// collapsed to single spaces. Upstream province names occasionally differ
// from the seeded dimension rows only in casing or spacing.
func normalizeName(s string) string {
	ascii, _, err := transform.String(stripAccents, s)
	if err != nil {
		ascii = s
	}
	return strings.Join(strings.Fields(strings.ToLower(ascii)), " ")
}
