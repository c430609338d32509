package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"govcomms/domain"
)

// AddSource inserts a source, or updates the existing row when the URL is
// already registered. Returns the stored row.
func (r *Repository) AddSource(ctx context.Context, s domain.Source) (domain.Source, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO sources (name, url, kind, channel_id, enabled)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO UPDATE SET
    name = EXCLUDED.name,
    kind = EXCLUDED.kind,
    channel_id = EXCLUDED.channel_id,
    enabled = EXCLUDED.enabled,
    updated_at = now()
RETURNING `+sourceColumns,
		s.Name, s.URL, string(s.Kind), s.ChannelID, s.Enabled)
	return scanSource(row)
}

func (r *Repository) GetSource(ctx context.Context, id int64) (domain.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	s, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	return s, err
}

func (r *Repository) ListSources(ctx context.Context, limit int) ([]domain.Source, error) {
	q := `SELECT ` + sourceColumns + ` FROM sources ORDER BY id ASC`
	if limit > 0 {
		q += ` LIMIT $1`
		return scanSources(r.db.QueryContext(ctx, q, limit))
	}
	return scanSources(r.db.QueryContext(ctx, q))
}

// ListEnabledSources returns enabled sources matching the filter, stalest
// first so a bounded batch drains the backlog fairly.
func (r *Repository) ListEnabledSources(ctx context.Context, f domain.SourceFilter) ([]domain.Source, error) {
	q := `SELECT ` + sourceColumns + ` FROM sources WHERE enabled`
	var args []any
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		q += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if f.Host != "" {
		args = append(args, f.Host)
		q += fmt.Sprintf(` AND lower(split_part(url, '/', 3)) = lower($%d)`, len(args))
	}
	if f.ID != 0 {
		args = append(args, f.ID)
		q += fmt.Sprintf(` AND id = $%d`, len(args))
	}
	if !f.CheckedBefore.IsZero() {
		args = append(args, f.CheckedBefore)
		q += fmt.Sprintf(` AND (last_checked IS NULL OR last_checked < $%d)`, len(args))
	}
	q += ` ORDER BY last_checked ASC NULLS FIRST, id ASC`
	return scanSources(r.db.QueryContext(ctx, q, args...))
}

// MarkSourceChecked stamps the fetch attempt, and the success timestamp
// when the cycle completed.
func (r *Repository) MarkSourceChecked(ctx context.Context, id int64, ok bool) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE sources SET
    last_checked = now(),
    last_success = CASE WHEN $2 THEN now() ELSE last_success END,
    updated_at = now()
WHERE id = $1`, id, ok)
	return err
}

// RefreshSourceSummary recomputes the denormalized item counters shown in
// source listings and health reports.
func (r *Repository) RefreshSourceSummary(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE sources SET
    first_item_at = (SELECT MIN(published_at) FROM items WHERE source_id = $1),
    last_item_at  = (SELECT MAX(published_at) FROM items WHERE source_id = $1),
    total_items   = (SELECT COUNT(*) FROM items WHERE source_id = $1),
    updated_at = now()
WHERE id = $1`, id)
	return err
}

func (r *Repository) SetChannelID(ctx context.Context, id int64, channelID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET channel_id = $2, updated_at = now() WHERE id = $1`, id, channelID)
	return err
}

// SetEnabled flips the crawl flag. Items stay; disabled sources drop out
// of enabled listings and the global scope until re-enabled.
func (r *Repository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sources SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	return nil
}
