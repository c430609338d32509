// Package blog crawls WordPress-style blogs by walking the "previous post"
// link chain backwards from the latest post, stopping at the first post the
// item store already knows.
package blog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"govcomms/domain"
	"govcomms/internal/retry"
)

const (
	defaultUserAgent = "govcomms-bot/1.0 (+contact: admin@localhost)"
	requestTimeout   = 20 * time.Second
	defaultPageDelay = 500 * time.Millisecond
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetryPolicy replaces the transient-failure retry budget.
func WithRetryPolicy(p retry.Policy) Option {
	return func(f *Fetcher) { f.policy = p }
}

// WithLimiter replaces the inter-request pacer; nil disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithUserAgent overrides the crawler's User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithMaxItems caps the posts fetched per source; 0 means unlimited.
func WithMaxItems(n int) Option {
	return func(f *Fetcher) { f.maxItems = n }
}

// WithStartURL overrides latest-post discovery with an explicit post URL.
// Meant for single-source runs.
func WithStartURL(u string) Option {
	return func(f *Fetcher) { f.startURL = u }
}

func WithLogger(log *slog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

type Fetcher struct {
	client    HTTPClient
	policy    retry.Policy
	limiter   *rate.Limiter
	userAgent string
	maxItems  int
	startURL  string
	log       *slog.Logger
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: requestTimeout},
		policy:    retry.Default,
		limiter:   rate.NewLimiter(rate.Every(defaultPageDelay), 1),
		userAgent: defaultUserAgent,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Kind() domain.SourceKind { return domain.KindBlog }

// FetchCandidates walks the previous-post chain starting from the source's
// latest post. Each page yields one candidate keyed by its URL. The walk
// stops at the boundary, a missing previous link, a revisited URL, or the
// max-items cap. Pages where neither a title nor a date can be extracted
// yield no candidate but the walk still follows their previous link.
func (f *Fetcher) FetchCandidates(ctx context.Context, src domain.Source, bound domain.Boundary) (domain.FetchResult, error) {
	homeURL := src.URL
	if !strings.HasSuffix(homeURL, "/") {
		homeURL += "/"
	}

	start := f.startURL
	if start == "" {
		var err error
		start, err = f.latestPostURL(ctx, homeURL)
		if err != nil {
			return domain.FetchResult{}, fmt.Errorf("discover latest post for %s: %w", homeURL, err)
		}
	}

	var res domain.FetchResult
	visited := make(map[string]bool)
	pageURL := start
	for pageURL != "" {
		if visited[pageURL] {
			break
		}
		visited[pageURL] = true

		page, err := f.get(ctx, pageURL)
		if err != nil {
			return domain.FetchResult{}, fmt.Errorf("fetch %s: %w", pageURL, err)
		}
		res.Pages++

		title := extractTitle(page)
		published := extractPublished(page)
		if title == "" && published == nil {
			res.ParseSkipped++
			f.log.Warn("post page yielded neither title nor date, skipping item",
				"url", pageURL)
		} else {
			res.Candidates = append(res.Candidates, domain.Candidate{
				ExternalID:  pageURL,
				Title:       title,
				PublishedAt: published,
			})
			if f.maxItems > 0 && len(res.Candidates) >= f.maxItems {
				break
			}
		}

		prev := normalizeURL(pageURL, extractPrevLink(page))
		if prev == "" {
			break
		}
		known, err := bound.Known(ctx, prev)
		if err != nil {
			return domain.FetchResult{}, fmt.Errorf("boundary check %s: %w", prev, err)
		}
		if known {
			f.log.Debug("hit already-known post, stopping", "url", prev)
			break
		}
		pageURL = prev
	}
	return res, nil
}

// get fetches one URL with pacing and the transient-failure retry budget.
// Rate-limit and server statuses are retried; other failures are final.
func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	var body string
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransientFetch, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d on %s", domain.ErrTransientFetch, resp.StatusCode, url)
		case resp.StatusCode >= 300:
			return fmt.Errorf("status %d on %s", resp.StatusCode, url)
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", domain.ErrTransientFetch, url, err)
		}
		body = string(b)
		return nil
	})
	return body, err
}
