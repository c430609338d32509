// Package postgres implements the source registry and item store over a
// single database handle.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"govcomms/domain"
)

type Repository struct{ db *sql.DB }

func New(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Ensure(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sources (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT now(),
    updated_at TIMESTAMP NOT NULL DEFAULT now(),
    name TEXT UNIQUE NOT NULL,
    url TEXT UNIQUE NOT NULL,
    kind TEXT NOT NULL,
    channel_id TEXT NOT NULL DEFAULT '',
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    last_checked TIMESTAMP,
    last_success TIMESTAMP,
    first_item_at TIMESTAMP,
    last_item_at TIMESTAMP,
    total_items INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS items (
    id BIGSERIAL PRIMARY KEY,
    source_id BIGINT NOT NULL REFERENCES sources(id),
    external_id TEXT NOT NULL,
    title TEXT NOT NULL,
    published_at TIMESTAMP,
    fetched_at TIMESTAMP NOT NULL DEFAULT now(),
    UNIQUE (source_id, external_id)
);
CREATE INDEX IF NOT EXISTS items_source_published ON items (source_id, published_at);
`)
	return err
}

const sourceColumns = `id, created_at, updated_at, name, url, kind, channel_id, enabled,
	last_checked, last_success, first_item_at, last_item_at, total_items`

func scanSource(row *sql.Row) (domain.Source, error) {
	var s domain.Source
	var kind string
	var lastChecked, lastSuccess, firstItem, lastItem sql.NullTime
	err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Name, &s.URL, &kind, &s.ChannelID,
		&s.Enabled, &lastChecked, &lastSuccess, &firstItem, &lastItem, &s.TotalItems)
	if err != nil {
		return domain.Source{}, err
	}
	s.Kind, err = domain.ParseKind(kind)
	if err != nil {
		return domain.Source{}, err
	}
	s.LastChecked = nullableTime(lastChecked)
	s.LastSuccess = nullableTime(lastSuccess)
	s.FirstItemAt = nullableTime(firstItem)
	s.LastItemAt = nullableTime(lastItem)
	return s, nil
}

func scanSources(rows *sql.Rows, err error) ([]domain.Source, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Source
	for rows.Next() {
		var s domain.Source
		var kind string
		var lastChecked, lastSuccess, firstItem, lastItem sql.NullTime
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Name, &s.URL, &kind, &s.ChannelID,
			&s.Enabled, &lastChecked, &lastSuccess, &firstItem, &lastItem, &s.TotalItems); err != nil {
			return nil, err
		}
		if s.Kind, err = domain.ParseKind(kind); err != nil {
			return nil, err
		}
		s.LastChecked = nullableTime(lastChecked)
		s.LastSuccess = nullableTime(lastSuccess)
		s.FirstItemAt = nullableTime(firstItem)
		s.LastItemAt = nullableTime(lastItem)
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanItems(rows *sql.Rows, err error) ([]domain.Item, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Item
	for rows.Next() {
		var it domain.Item
		var published sql.NullTime
		if err := rows.Scan(&it.ID, &it.SourceID, &it.ExternalID, &it.Title, &published, &it.FetchedAt); err != nil {
			return nil, err
		}
		it.PublishedAt = nullableTime(published)
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
