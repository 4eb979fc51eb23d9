package metadata

import (
	"net/url"
	"strings"
)

// Normalize returns the canonical form of a URL used as the store's dedup
// key. The scheme and authority are lowercased, trailing slashes are
// stripped from the path (an all-slash path collapses to empty, not "/"),
// the query is preserved byte-for-byte, and the fragment is dropped.
//
// Normalize is total and idempotent. Input that cannot be split into
// scheme/authority/path/query is returned trimmed, best-effort; rejecting
// such input is the caller's concern.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}

	authority := strings.ToLower(u.Host)
	if u.User != nil {
		authority = strings.ToLower(u.User.String()) + "@" + authority
	}

	path := strings.TrimRight(u.EscapedPath(), "/")

	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(authority)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}
