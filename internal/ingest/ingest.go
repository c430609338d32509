// Package ingest merges fetched candidates into the item store. Each item
// is keyed by (source_id, external_id); duplicates are skipped, not updated.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"govcomms/domain"
)

// Summary reports one ingestion pass for a source.
type Summary struct {
	NewCount     int
	SkippedCount int
}

type Ingester struct {
	store  domain.ItemStore
	log    *slog.Logger
	dryRun bool
	now    func() time.Time
}

type Option func(*Ingester)

// DryRun counts new vs. known candidates without writing anything.
func DryRun(on bool) Option {
	return func(i *Ingester) { i.dryRun = on }
}

// WithClock overrides the fetch-timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingester) { i.now = now }
}

func New(store domain.ItemStore, log *slog.Logger, opts ...Option) *Ingester {
	if log == nil {
		log = slog.Default()
	}
	ing := &Ingester{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest stores each candidate unless its external id is already known.
// Inserts are atomic per key, so a re-run over identical input yields zero
// new rows. A write failure aborts this source's pass and surfaces as a
// store-write error; the summary still carries the counts up to that point.
func (i *Ingester) Ingest(ctx context.Context, sourceID int64, cands []domain.Candidate) (Summary, error) {
	var sum Summary
	for _, c := range cands {
		if c.ExternalID == "" {
			sum.SkippedCount++
			continue
		}
		if i.dryRun {
			known, err := i.store.Exists(ctx, sourceID, c.ExternalID)
			if err != nil {
				return sum, fmt.Errorf("%w: exists %s: %w", domain.ErrStoreWrite, c.ExternalID, err)
			}
			if known {
				sum.SkippedCount++
			} else {
				sum.NewCount++
			}
			continue
		}

		inserted, err := i.store.Insert(ctx, domain.Item{
			SourceID:    sourceID,
			ExternalID:  c.ExternalID,
			Title:       c.Title,
			PublishedAt: c.PublishedAt,
			FetchedAt:   i.now(),
		})
		if err != nil {
			return sum, fmt.Errorf("%w: insert %s: %w", domain.ErrStoreWrite, c.ExternalID, err)
		}
		if inserted {
			sum.NewCount++
		} else {
			sum.SkippedCount++
		}
	}
	i.log.Debug("ingest pass done",
		"source_id", sourceID, "new", sum.NewCount, "skipped", sum.SkippedCount, "dry_run", i.dryRun)
	return sum, nil
}
