// Package urlutil normalizes page URLs delivered over the host channel.
package urlutil

import (
	"net/url"
	"strings"
)

// NormalizePageURL validates a page URL reported by the hosting page. Only
// absolute http and https URLs are kept; anything else (extension pages,
// about:blank, data URIs) normalizes to empty so notes are never stamped
// with it.
func NormalizePageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// DisplayHost returns the hostname to show next to a note's source URL,
// without the scheme, port, or a leading "www.".
func DisplayHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := u.Hostname()
	return strings.TrimPrefix(host, "www.")
}
