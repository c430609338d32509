package blog

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

var listingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<h2[^>]*class=["'][^"']*entry-title[^"']*["'][^>]*>.*?<a[^>]*href=["']([^"']+)["']`),
	regexp.MustCompile(`(?is)<article[^>]*>.*?<header[^>]*>.*?<h2[^>]*>.*?<a[^>]*href=["']([^"']+)["']`),
	regexp.MustCompile(`(?is)<main[^>]*>.*?<a[^>]*href=["']([^"']+)["']`),
}

var (
	linkTagPattern = regexp.MustCompile(`(?i)<link[^>]+>`)
	hrefAttr       = regexp.MustCompile(`(?i)href=["']([^"']+)["']`)
)

// latestPostURL discovers the newest post for a blog: listing anchors on
// the homepage first, then the feed, then the WordPress JSON API.
func (f *Fetcher) latestPostURL(ctx context.Context, homeURL string) (string, error) {
	page, err := f.get(ctx, homeURL)
	if err != nil {
		return "", err
	}

	for _, p := range listingPatterns {
		if m := p.FindStringSubmatch(page); m != nil {
			if u := normalizeURL(homeURL, m[1]); u != "" {
				return u, nil
			}
		}
	}

	feedURL := discoverFeedURL(page, homeURL)
	if body, err := f.get(ctx, feedURL); err == nil {
		if u := feedLatestEntryLink(body); u != "" {
			return normalizeURL(feedURL, u), nil
		}
	} else {
		f.log.Debug("feed fallback failed", "url", feedURL, "err", err)
	}

	api := normalizeURL(homeURL, "/wp-json/wp/v2/posts?per_page=1&_fields=link,date")
	if body, err := f.get(ctx, api); err == nil {
		var posts []struct {
			Link string `json:"link"`
		}
		if jerr := json.Unmarshal([]byte(body), &posts); jerr == nil && len(posts) > 0 && posts[0].Link != "" {
			return posts[0].Link, nil
		}
	} else {
		f.log.Debug("wp-json fallback failed", "url", api, "err", err)
	}

	return "", fmt.Errorf("no latest post found on %s", homeURL)
}

// discoverFeedURL finds an RSS/Atom alternate link in the homepage head,
// defaulting to the WordPress /feed/ path.
func discoverFeedURL(page, homeURL string) string {
	for _, tag := range linkTagPattern.FindAllString(page, -1) {
		lower := strings.ToLower(tag)
		if !strings.Contains(lower, "alternate") {
			continue
		}
		if !strings.Contains(lower, "rss") && !strings.Contains(lower, "atom") && !strings.Contains(lower, "xml") {
			continue
		}
		if m := hrefAttr.FindStringSubmatch(tag); m != nil {
			if u := normalizeURL(homeURL, m[1]); u != "" {
				return u
			}
		}
	}
	return normalizeURL(homeURL, "/feed/")
}

type rssFeed struct {
	Channel struct {
		Item []struct {
			Link string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomFeed struct {
	Entry []struct {
		Link []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

// feedLatestEntryLink pulls the newest entry's link from an RSS or Atom
// document, tolerating either format.
func feedLatestEntryLink(body string) string {
	var rf rssFeed
	if err := xml.Unmarshal([]byte(body), &rf); err == nil {
		if len(rf.Channel.Item) > 0 && strings.TrimSpace(rf.Channel.Item[0].Link) != "" {
			return strings.TrimSpace(rf.Channel.Item[0].Link)
		}
	}
	var af atomFeed
	if err := xml.Unmarshal([]byte(body), &af); err == nil && len(af.Entry) > 0 {
		for _, l := range af.Entry[0].Link {
			if l.Href != "" && (l.Rel == "" || l.Rel == "alternate") {
				return l.Href
			}
		}
	}
	return ""
}
