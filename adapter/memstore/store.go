// Package memstore is an in-memory registry and item store. It backs tests
// and dry runs with the same semantics as the postgres adapter.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"govcomms/domain"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextSrc  int64
	nextItem int64
	sources  map[int64]domain.Source
	items    map[int64][]domain.Item
	keys     map[string]bool
}

func New() *Store {
	return &Store{
		now:     time.Now,
		sources: make(map[int64]domain.Source),
		items:   make(map[int64][]domain.Item),
		keys:    make(map[string]bool),
	}
}

// SetClock overrides the timestamp source used for bookkeeping columns.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func itemKey(sourceID int64, externalID string) string {
	return fmt.Sprintf("%d|%s", sourceID, externalID)
}

func (s *Store) Ensure(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *Store) AddSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert by URL, like the registry table's unique constraint.
	for id, existing := range s.sources {
		if existing.URL == src.URL {
			existing.Name = src.Name
			existing.Kind = src.Kind
			existing.ChannelID = src.ChannelID
			existing.Enabled = src.Enabled
			existing.UpdatedAt = s.now()
			s.sources[id] = existing
			return existing, nil
		}
	}

	s.nextSrc++
	src.ID = s.nextSrc
	src.CreatedAt = s.now()
	src.UpdatedAt = src.CreatedAt
	s.sources[src.ID] = src
	return src, nil
}

func (s *Store) GetSource(ctx context.Context, id int64) (domain.Source, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[id]
	if !ok {
		return domain.Source{}, fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	return src, nil
}

func (s *Store) ListSources(ctx context.Context, limit int) ([]domain.Source, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListEnabledSources(ctx context.Context, f domain.SourceFilter) ([]domain.Source, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Source
	for _, src := range s.sources {
		if !src.Enabled {
			continue
		}
		if f.Kind != "" && src.Kind != f.Kind {
			continue
		}
		if f.Host != "" && !strings.EqualFold(hostOf(src.URL), f.Host) {
			continue
		}
		if f.ID != 0 && src.ID != f.ID {
			continue
		}
		if !f.CheckedBefore.IsZero() && src.LastChecked != nil && !src.LastChecked.Before(f.CheckedBefore) {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastChecked == nil && b.LastChecked != nil:
			return true
		case a.LastChecked != nil && b.LastChecked == nil:
			return false
		case a.LastChecked != nil && !a.LastChecked.Equal(*b.LastChecked):
			return a.LastChecked.Before(*b.LastChecked)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) MarkSourceChecked(ctx context.Context, id int64, ok bool) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	src, found := s.sources[id]
	if !found {
		return fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	now := s.now()
	src.LastChecked = &now
	if ok {
		src.LastSuccess = &now
	}
	src.UpdatedAt = now
	s.sources[id] = src
	return nil
}

func (s *Store) RefreshSourceSummary(ctx context.Context, id int64) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	src, found := s.sources[id]
	if !found {
		return fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	src.FirstItemAt, src.LastItemAt = nil, nil
	src.TotalItems = len(s.items[id])
	for _, it := range s.items[id] {
		if it.PublishedAt == nil {
			continue
		}
		if src.FirstItemAt == nil || it.PublishedAt.Before(*src.FirstItemAt) {
			ts := *it.PublishedAt
			src.FirstItemAt = &ts
		}
		if src.LastItemAt == nil || it.PublishedAt.After(*src.LastItemAt) {
			ts := *it.PublishedAt
			src.LastItemAt = &ts
		}
	}
	src.UpdatedAt = s.now()
	s.sources[id] = src
	return nil
}

func (s *Store) SetChannelID(ctx context.Context, id int64, channelID string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	src, found := s.sources[id]
	if !found {
		return fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	src.ChannelID = channelID
	src.UpdatedAt = s.now()
	s.sources[id] = src
	return nil
}

func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	src, found := s.sources[id]
	if !found {
		return fmt.Errorf("id %d: %w", id, domain.ErrSourceNotFound)
	}
	src.Enabled = enabled
	src.UpdatedAt = s.now()
	s.sources[id] = src
	return nil
}

func (s *Store) Exists(ctx context.Context, sourceID int64, externalID string) (bool, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[itemKey(sourceID, externalID)], nil
}

func (s *Store) Insert(ctx context.Context, it domain.Item) (bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	key := itemKey(it.SourceID, it.ExternalID)
	if s.keys[key] {
		return false, nil
	}
	s.nextItem++
	it.ID = s.nextItem
	if it.FetchedAt.IsZero() {
		it.FetchedAt = s.now()
	}
	s.keys[key] = true
	s.items[it.SourceID] = append(s.items[it.SourceID], it)
	return true, nil
}

func (s *Store) MaxSignal(ctx context.Context, scope domain.Scope) (domain.Signal, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sig domain.Signal
	for sourceID, items := range s.items {
		if !s.inScope(scope, sourceID) {
			continue
		}
		for _, it := range items {
			sig.ItemCount++
			if it.FetchedAt.After(sig.LatestItem) {
				sig.LatestItem = it.FetchedAt
			}
		}
	}
	return sig, nil
}

func (s *Store) ItemsFor(ctx context.Context, scope domain.Scope) ([]domain.Item, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Item
	for sourceID, items := range s.items {
		if !s.inScope(scope, sourceID) {
			continue
		}
		for _, it := range items {
			if it.PublishedAt != nil {
				out = append(out, it)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(*out[j].PublishedAt) {
			return out[i].PublishedAt.Before(*out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// inScope expects the read lock held.
func (s *Store) inScope(scope domain.Scope, sourceID int64) bool {
	if scope.Global() {
		src, ok := s.sources[sourceID]
		return ok && src.Enabled
	}
	return scope.SourceID == sourceID
}

func hostOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[i+2:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}
