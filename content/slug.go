package content

import (
	"strings"
	"unicode"
)

// Slugify converts a title or tag to a lowercase kebab-case identifier.
// Characters other than ASCII letters, digits, whitespace and dashes are
// dropped; runs of whitespace and dashes collapse to a single dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case r == '-', unicode.IsSpace(r):
			dash = true
		}
	}
	return b.String()
}
