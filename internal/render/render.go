// Package render computes the derived analytics artifacts for a scope's
// items: monthly counts, a trailing rolling average, and word frequencies.
// Every computation is deterministic over its input; payloads carry no
// timestamps so re-rendering identical items yields identical bytes.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"govcomms/domain"
)

const (
	DefaultRollingDays = 90
	DefaultTopWords    = 200
)

// MonthlyCount is one calendar-month bucket. Months without items appear
// with a zero count so downstream charts show continuous time.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// DailyAverage is the trailing mean of per-day item counts on one date.
type DailyAverage struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
}

// TokenCount is one token's frequency across the scope's titles.
type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// Renderer holds the rendering knobs. The zero value is not usable; call New.
type Renderer struct {
	rollingDays int
	topWords    int
	stopwords   map[string]struct{}
}

type Option func(*Renderer)

// WithRollingDays sets the trailing window size in days.
func WithRollingDays(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.rollingDays = n
		}
	}
}

// WithTopWords caps the word-frequency output; 0 keeps every token.
func WithTopWords(n int) Option {
	return func(r *Renderer) { r.topWords = n }
}

// WithStopwords replaces the default stopword set.
func WithStopwords(words []string) Option {
	return func(r *Renderer) { r.stopwords = stopwordSet(words) }
}

// WithExtraStopwords extends the current stopword set.
func WithExtraStopwords(words []string) Option {
	return func(r *Renderer) {
		for _, w := range words {
			r.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		rollingDays: DefaultRollingDays,
		topWords:    DefaultTopWords,
		stopwords:   stopwordSet(DefaultStopwords),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func stopwordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// RollingDays reports the configured window; asset filenames embed it.
func (r *Renderer) RollingDays() int { return r.rollingDays }

// Render computes the artifact of the given kind and marshals it.
func (r *Renderer) Render(kind domain.AssetKind, items []domain.Item) ([]byte, error) {
	var v any
	switch kind {
	case domain.AssetMonthlyCounts:
		v = r.MonthlyCounts(items)
	case domain.AssetRollingAverage:
		v = r.RollingAverage(items)
	case domain.AssetWordFrequencies:
		v = r.WordFrequencies(items)
	default:
		return nil, fmt.Errorf("%w: unknown asset kind %q", domain.ErrRender, kind)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal %s: %s", domain.ErrRender, kind, err)
	}
	return append(data, '\n'), nil
}

// MonthlyCounts buckets items by calendar month from the first to the last
// item's month, zero buckets included.
func (r *Renderer) MonthlyCounts(items []domain.Item) []MonthlyCount {
	dated := datedTimes(items)
	if len(dated) == 0 {
		return []MonthlyCount{}
	}

	counts := make(map[string]int, len(dated))
	for _, ts := range dated {
		counts[ts.Format("2006-01")]++
	}

	first := monthStart(dated[0])
	last := monthStart(dated[len(dated)-1])
	out := make([]MonthlyCount, 0, 12)
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		out = append(out, MonthlyCount{Month: key, Count: counts[key]})
	}
	return out
}

// RollingAverage computes the trailing mean of per-day counts over the full
// span from the earliest to the latest item date. Days without items count
// as zero; early days with fewer than a full window of history divide by
// the days elapsed so far.
func (r *Renderer) RollingAverage(items []domain.Item) []DailyAverage {
	dated := datedTimes(items)
	if len(dated) == 0 {
		return []DailyAverage{}
	}

	firstDay := dayStart(dated[0])
	lastDay := dayStart(dated[len(dated)-1])
	days := int(lastDay.Sub(firstDay)/(24*time.Hour)) + 1

	daily := make([]int, days)
	for _, ts := range dated {
		idx := int(dayStart(ts).Sub(firstDay) / (24 * time.Hour))
		daily[idx]++
	}

	out := make([]DailyAverage, days)
	sum := 0
	for i := 0; i < days; i++ {
		sum += daily[i]
		if drop := i - r.rollingDays; drop >= 0 {
			sum -= daily[drop]
		}
		window := i + 1
		if window > r.rollingDays {
			window = r.rollingDays
		}
		out[i] = DailyAverage{
			Date:    firstDay.AddDate(0, 0, i).Format("2006-01-02"),
			Average: float64(sum) / float64(window),
		}
	}
	return out
}

// WordFrequencies tokenizes item titles, drops stopwords and tokens shorter
// than three characters, and counts the rest. Output is ordered by count
// descending, ties broken by token so identical inputs render identically.
func (r *Renderer) WordFrequencies(items []domain.Item) []TokenCount {
	counts := make(map[string]int)
	for _, it := range items {
		if it.PublishedAt == nil {
			continue
		}
		for _, tok := range strings.Fields(cleanTitle(it.Title)) {
			if len(tok) < 3 {
				continue
			}
			if _, stop := r.stopwords[tok]; stop {
				continue
			}
			counts[tok]++
		}
	}

	out := make([]TokenCount, 0, len(counts))
	for tok, n := range counts {
		out = append(out, TokenCount{Token: tok, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Token < out[j].Token
	})
	if r.topWords > 0 && len(out) > r.topWords {
		out = out[:r.topWords]
	}
	return out
}

var (
	quoteChars   = regexp.MustCompile("[‘’´`']")
	nonTokenChar = regexp.MustCompile(`[^a-z0-9\s\-.]`)
	bareNumber   = regexp.MustCompile(`\b\d{1,4}\b`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// cleanTitle lowercases a title and strips punctuation and standalone
// small numbers, leaving space-separated tokens of [a-z0-9.-].
func cleanTitle(s string) string {
	s = strings.ToLower(s)
	s = quoteChars.ReplaceAllString(s, " ")
	s = nonTokenChar.ReplaceAllString(s, " ")
	s = bareNumber.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// datedTimes extracts the published timestamps in ascending order,
// skipping undated items.
func datedTimes(items []domain.Item) []time.Time {
	out := make([]time.Time, 0, len(items))
	for _, it := range items {
		if it.PublishedAt != nil {
			out = append(out, it.PublishedAt.UTC())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
