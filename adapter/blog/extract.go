package blog

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Post pages are scraped with anchored patterns rather than a DOM parser;
// the selector chains mirror what WordPress themes on the target hosts
// actually emit.

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<h1[^>]*class=["'][^"']*entry-title[^"']*["'][^>]*>(.*?)</h1>`),
	regexp.MustCompile(`(?is)<article[^>]*>.*?<h1[^>]*>(.*?)</h1>`),
	regexp.MustCompile(`(?is)<header[^>]*>.*?<h1[^>]*>(.*?)</h1>`),
	regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`),
	regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]*property=["']article:published_time["'][^>]*content=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<meta[^>]*content=["']([^"']+)["'][^>]*property=["']article:published_time["']`),
	regexp.MustCompile(`(?i)<meta[^>]*name=["']pubdate["'][^>]*content=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<time[^>]*datetime=["']([^"']+)["']`),
}

var prevPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<a[^>]*rel=["']prev["'][^>]*href=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<a[^>]*href=["']([^"']+)["'][^>]*rel=["']prev["']`),
	regexp.MustCompile(`(?is)class=["'][^"']*nav-previous[^"']*["'][^>]*>.*?<a[^>]*href=["']([^"']+)["']`),
	regexp.MustCompile(`(?i)<a[^>]*class=["'][^"']*(?:previous-post|prev-post)[^"']*["'][^>]*href=["']([^"']+)["']`),
}

var (
	anchorPattern = regexp.MustCompile(`(?is)<a[^>]*href=["']([^"']+)["'][^>]*>(.*?)</a>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern  = regexp.MustCompile(`\s+`)
	isoDatePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
)

// extractTitle tries the theme heading selectors in order, falling back to
// the document title.
func extractTitle(page string) string {
	for _, p := range titlePatterns {
		if m := p.FindStringSubmatch(page); m != nil {
			if t := stripTags(m[1]); t != "" {
				return t
			}
		}
	}
	return ""
}

// extractPublished reads the published timestamp from meta tags or a
// <time datetime> attribute.
func extractPublished(page string) *time.Time {
	for _, p := range datePatterns {
		if m := p.FindStringSubmatch(page); m != nil {
			if ts := parseDate(m[1]); ts != nil {
				return ts
			}
		}
	}
	return nil
}

// extractPrevLink finds the previous-post link: rel=prev and navigation
// class selectors first, then anchor text near the share block.
func extractPrevLink(page string) string {
	for _, p := range prevPatterns {
		if m := p.FindStringSubmatch(page); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	// Some themes label the links only by text. Scan the anchors around
	// the "share this page" block to avoid matching archive navigation.
	idx := strings.Index(strings.ToLower(page), "share this page")
	if idx < 0 {
		return ""
	}
	lo := idx - 2000
	if lo < 0 {
		lo = 0
	}
	hi := idx + 1000
	if hi > len(page) {
		hi = len(page)
	}
	for _, m := range anchorPattern.FindAllStringSubmatch(page[lo:hi], -1) {
		text := strings.ToLower(stripTags(m[2]))
		if strings.Contains(text, "previous") || strings.Contains(text, "older") || strings.Contains(text, "←") {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// parseDate tries the timestamp formats the target themes emit, loosest
// last: a bare leading YYYY-MM-DD still parses.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	if m := isoDatePrefix.FindStringSubmatch(s); m != nil {
		if ts, err := time.Parse("2006-01-02", m[1]); err == nil {
			return &ts
		}
	}
	return nil
}

// normalizeURL resolves href against the page URL, dropping fragments and
// unsupported schemes.
func normalizeURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func stripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
