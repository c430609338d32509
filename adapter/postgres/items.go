package postgres

import (
	"context"

	"govcomms/domain"
)

func (r *Repository) Exists(ctx context.Context, sourceID int64, externalID string) (bool, error) {
	var known bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE source_id = $1 AND external_id = $2)`,
		sourceID, externalID).Scan(&known)
	return known, err
}

// Insert stores the item unless its key already exists. The conflict path
// writes nothing, keeping stored items immutable.
func (r *Repository) Insert(ctx context.Context, it domain.Item) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO items (source_id, external_id, title, published_at, fetched_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (source_id, external_id) DO NOTHING`,
		it.SourceID, it.ExternalID, it.Title, it.PublishedAt, it.FetchedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MaxSignal computes the scope's staleness signal: newest fetch timestamp
// and item count. Global scope spans enabled sources only.
func (r *Repository) MaxSignal(ctx context.Context, scope domain.Scope) (domain.Signal, error) {
	var sig domain.Signal
	var err error
	if scope.Global() {
		err = r.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(i.fetched_at), 'epoch'::timestamp), COUNT(*)
FROM items i JOIN sources s ON s.id = i.source_id
WHERE s.enabled`).Scan(&sig.LatestItem, &sig.ItemCount)
	} else {
		err = r.db.QueryRowContext(ctx, `
SELECT COALESCE(MAX(fetched_at), 'epoch'::timestamp), COUNT(*)
FROM items WHERE source_id = $1`, scope.SourceID).Scan(&sig.LatestItem, &sig.ItemCount)
	}
	return sig, err
}

// ItemsFor returns the scope's dated items in published order. Undated
// items are excluded; they count toward the signal but cannot be bucketed.
func (r *Repository) ItemsFor(ctx context.Context, scope domain.Scope) ([]domain.Item, error) {
	if scope.Global() {
		return scanItems(r.db.QueryContext(ctx, `
SELECT i.id, i.source_id, i.external_id, i.title, i.published_at, i.fetched_at
FROM items i JOIN sources s ON s.id = i.source_id
WHERE s.enabled AND i.published_at IS NOT NULL
ORDER BY i.published_at ASC, i.id ASC`))
	}
	return scanItems(r.db.QueryContext(ctx, `
SELECT id, source_id, external_id, title, published_at, fetched_at
FROM items
WHERE source_id = $1 AND published_at IS NOT NULL
ORDER BY published_at ASC, id ASC`, scope.SourceID))
}
