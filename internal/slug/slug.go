// Package slug derives filesystem and display names from source metadata.
package slug

import (
	"net/url"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Make turns a source name into the directory slug used under the asset
// root: runs of non-alphanumerics collapse to "-", trimmed and lowercased.
// An empty result falls back to "source".
func Make(name string) string {
	s := nonAlnum.ReplaceAllString(strings.TrimSpace(name), "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if s == "" {
		return "source"
	}
	return s
}

// Host extracts the bare hostname from a source URL for host filters and
// reports. A leading "www." is dropped; unparseable input comes back as is.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	h := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(h, "www.")
}
