package schema

import (
	"strings"
	"unicode/utf8"
)

// TranslationMarker prefixes seed text that must be translated for display.
const TranslationMarker = "_tr_"

// StripMarker removes a leading translation marker. It reports whether the
// text carried one.
func StripMarker(s string) (string, bool) {
	if len(s) > len(TranslationMarker) && strings.HasPrefix(s, TranslationMarker) {
		return s[len(TranslationMarker):], true
	}
	return s, false
}

// RemoveMarkers drops every marker occurrence, as done for portable scripts.
func RemoveMarkers(s string) string {
	return strings.ReplaceAll(s, TranslationMarker, "")
}

// IsASCII reports whether s is plain 7-bit text.
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
