package domain

import (
	"context"
	"time"
)

// SourceRegistry is the persistence port for registered sources. The
// pipeline reads sources and updates fetch bookkeeping; creation and
// editing belong to the admin side.
type SourceRegistry interface {
	Ensure(ctx context.Context) error
	AddSource(ctx context.Context, s Source) (Source, error)
	GetSource(ctx context.Context, id int64) (Source, error)
	ListSources(ctx context.Context, limit int) ([]Source, error)
	ListEnabledSources(ctx context.Context, f SourceFilter) ([]Source, error)
	MarkSourceChecked(ctx context.Context, id int64, ok bool) error
	RefreshSourceSummary(ctx context.Context, id int64) error
	SetChannelID(ctx context.Context, id int64, channelID string) error
	// SetEnabled retires a source from crawling (or brings it back)
	// without touching its ingested items.
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// SourceFilter narrows ListEnabledSources. Zero values mean "no filter";
// CheckedBefore selects sources due for a new cycle.
type SourceFilter struct {
	Kind          SourceKind
	Host          string
	ID            int64
	CheckedBefore time.Time
}

// ItemStore is the persistence port for ingested items.
type ItemStore interface {
	Exists(ctx context.Context, sourceID int64, externalID string) (bool, error)
	// Insert stores the item unless (source_id, external_id) already
	// exists; the bool reports whether a row was written.
	Insert(ctx context.Context, it Item) (bool, error)
	MaxSignal(ctx context.Context, scope Scope) (Signal, error)
	// ItemsFor returns the scope's dated items in published order. Items
	// without a published timestamp are excluded; they count toward the
	// signal but cannot be bucketed.
	ItemsFor(ctx context.Context, scope Scope) ([]Item, error)
}

// AssetStore persists rendered artifacts and the signal each was
// rendered from.
type AssetStore interface {
	RecordedSignal(scope Scope, kind AssetKind) (Asset, bool, error)
	ArtifactExists(scope Scope, kind AssetKind) bool
	WriteArtifact(scope Scope, kind AssetKind, data []byte, generatedAt time.Time, sig Signal) error
}

// Boundary answers whether an external id is already ingested. Fetchers use
// it to stop paginating; it is derived from the Item Store on demand, never
// persisted as separate cursor state.
type Boundary interface {
	Known(ctx context.Context, externalID string) (bool, error)
}

// Fetcher is the kind-specific crawl strategy. Implementations only read
// the network; they never touch the Item Store beyond the Boundary.
type Fetcher interface {
	Kind() SourceKind
	FetchCandidates(ctx context.Context, src Source, bound Boundary) (FetchResult, error)
}

// Runner exposes application-level controls for background processing.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error

	SetInterval(d time.Duration)
	Resize(workers int) error
	CurrentInterval() time.Duration
	CurrentWorkers() int
}
