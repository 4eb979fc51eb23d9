package metadata

import "unicode/utf8"

// TruncatePageSource bounds a page body to maxBytes of UTF-8. Input at or
// under the budget is returned unchanged. Otherwise the text is cut at the
// byte limit and any trailing bytes that do not form a complete rune are
// dropped, so the result never exceeds the budget and stays valid UTF-8
// for valid input.
func TruncatePageSource(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
