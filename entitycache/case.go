package entitycache

import (
	"strings"
	"unicode"
)

// toSnake turns a table name into the lower snake_case form used in lookup
// cache namespaces. Characters other than letters and digits collapse into a
// single underscore so namespaces stay safe for prefix invalidation.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	sep := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			sep()
		}
	}
	return strings.Trim(b.String(), "_")
}
