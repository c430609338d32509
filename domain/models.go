package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind selects the fetch strategy for a source.
type SourceKind string

const (
	KindBlog  SourceKind = "blog"
	KindVideo SourceKind = "video"
)

// ParseKind normalizes a stored kind value. Rows imported from the legacy
// system spell video sources "YouTube"; both spellings are accepted.
func ParseKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blog":
		return KindBlog, nil
	case "video", "youtube":
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}

// Source is a registered external origin of content. The registry owns it;
// the pipeline only reads it and updates the fetch bookkeeping columns.
type Source struct {
	ID          int64
	Name        string
	URL         string
	Kind        SourceKind
	ChannelID   string
	Enabled     bool
	LastChecked *time.Time
	LastSuccess *time.Time
	FirstItemAt *time.Time
	LastItemAt  *time.Time
	TotalItems  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is one ingested post or video. Immutable once stored: a re-fetch of
// an already-seen external id is a skip, never an update.
type Item struct {
	ID          int64
	SourceID    int64
	ExternalID  string
	Title       string
	PublishedAt *time.Time
	FetchedAt   time.Time
}

// Candidate is a not-yet-stored item yielded by a fetcher.
type Candidate struct {
	ExternalID  string
	Title       string
	PublishedAt *time.Time
}

// FetchResult carries the candidates found in one crawl of a source.
type FetchResult struct {
	Candidates   []Candidate
	Pages        int
	ParseSkipped int
}

// Signal summarizes a scope's stored items for staleness comparison:
// the newest fetch timestamp and the total item count.
type Signal struct {
	LatestItem time.Time
	ItemCount  int
}

// GlobalSlug names the union-of-all-sources scope in asset paths.
const GlobalSlug = "all-sources"

// Scope identifies whose items an asset is derived from: one source, or the
// union of all enabled sources when SourceID is zero.
type Scope struct {
	SourceID int64
	Slug     string
}

func GlobalScope() Scope { return Scope{Slug: GlobalSlug} }

func SourceScope(s Source, slug string) Scope { return Scope{SourceID: s.ID, Slug: slug} }

func (s Scope) Global() bool { return s.SourceID == 0 }

func (s Scope) String() string {
	if s.Global() {
		return "global"
	}
	return fmt.Sprintf("source:%d", s.SourceID)
}

// AssetKind names one of the derived artifact families.
type AssetKind string

const (
	AssetMonthlyCounts   AssetKind = "monthly_counts"
	AssetRollingAverage  AssetKind = "rolling_average"
	AssetWordFrequencies AssetKind = "word_frequencies"
)

// AllAssetKinds lists every kind in render order.
func AllAssetKinds() []AssetKind {
	return []AssetKind{AssetMonthlyCounts, AssetRollingAverage, AssetWordFrequencies}
}

// Asset records a rendered artifact and the signal it was rendered from.
type Asset struct {
	Kind        AssetKind
	GeneratedAt time.Time
	Signal      Signal
}

// CycleState labels the stages of one source's fetch-ingest-render cycle.
type CycleState string

const (
	StateIdle           CycleState = "idle"
	StateFetching       CycleState = "fetching"
	StateFetchFailed    CycleState = "fetch_failed"
	StateIngesting      CycleState = "ingesting"
	StateIngestFailed   CycleState = "ingest_failed"
	StateStalenessCheck CycleState = "staleness_check"
	StateRendering      CycleState = "rendering"
	StateRenderSkipped  CycleState = "render_skipped"
	StateRenderOK       CycleState = "render_ok"
	StateRenderFailed   CycleState = "render_failed"
)

// CycleSummary is the per-source outcome reported after a cycle. Failures
// stay inside the summary; one source's error never aborts its siblings.
type CycleSummary struct {
	SourceID     int64
	SourceName   string
	Host         string
	State        CycleState
	NewCount     int
	SkippedCount int
	ParseSkipped int
	Pages        int
	Rendered     []AssetKind
	Err          error
}

// Failed reports whether the cycle ended in any failed state.
func (c CycleSummary) Failed() bool {
	switch c.State {
	case StateFetchFailed, StateIngestFailed, StateRenderFailed:
		return true
	}
	return false
}
