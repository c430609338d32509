package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"govcomms/domain"
)

var (
	channelIDPattern = regexp.MustCompile(`/channel/(UC[0-9A-Za-z_-]{10,})`)
	handlePattern    = regexp.MustCompile(`youtube\.com/@([^/?#]+)`)
	usernamePattern  = regexp.MustCompile(`youtube\.com/user/([^/?#]+)`)
)

// ChannelIDSaver persists a resolved channel id back onto the source row.
type ChannelIDSaver interface {
	SetChannelID(ctx context.Context, id int64, channelID string) error
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithSince keeps only videos published on or after the given day.
func WithSince(t time.Time) Option {
	return func(f *Fetcher) { f.since = &t }
}

// WithMaxItems caps the new videos discovered per source; 0 means unlimited.
func WithMaxItems(n int) Option {
	return func(f *Fetcher) { f.maxItems = n }
}

// WithUploadsOnly skips the channel's curated playlists.
func WithUploadsOnly(on bool) Option {
	return func(f *Fetcher) { f.uploadsOnly = on }
}

// WithPlaylistsOnly skips the uploads playlist.
func WithPlaylistsOnly(on bool) Option {
	return func(f *Fetcher) { f.playlistsOnly = on }
}

// WithPlaylistsLimit caps the curated playlists scanned per channel.
func WithPlaylistsLimit(n int) Option {
	return func(f *Fetcher) { f.playlistsLimit = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

// Fetcher discovers new videos for a channel source. Paging a playlist
// stops once a whole page is already-known items, so a channel with deep
// history costs one page per cycle once caught up.
type Fetcher struct {
	client *Client
	saver  ChannelIDSaver

	since          *time.Time
	maxItems       int
	uploadsOnly    bool
	playlistsOnly  bool
	playlistsLimit int
	log            *slog.Logger
}

func New(client *Client, saver ChannelIDSaver, opts ...Option) *Fetcher {
	f := &Fetcher{client: client, saver: saver, log: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Kind() domain.SourceKind { return domain.KindVideo }

// FetchCandidates lists the channel's uploads (and curated playlists unless
// restricted), keeps the ids the boundary does not know, and fetches their
// metadata in batches.
func (f *Fetcher) FetchCandidates(ctx context.Context, src domain.Source, bound domain.Boundary) (domain.FetchResult, error) {
	var res domain.FetchResult

	channelID, err := f.ensureChannelID(ctx, src)
	if err != nil {
		return res, err
	}

	col := &collector{
		client:   f.client,
		bound:    bound,
		log:      f.log,
		maxItems: f.maxItems,
		seen:     make(map[string]bool),
	}

	if !f.playlistsOnly {
		uploads, err := f.client.UploadsPlaylistID(ctx, channelID)
		if err != nil {
			return res, fmt.Errorf("uploads playlist for %s: %w", channelID, err)
		}
		if uploads == "" {
			f.log.Warn("no uploads playlist found", "channel_id", channelID)
		} else if err := col.addPlaylist(ctx, uploads); err != nil {
			if !errors.Is(err, ErrPlaylistNotFound) {
				res.Pages = col.pages
				return res, fmt.Errorf("uploads %s: %w", uploads, err)
			}
			f.log.Warn("uploads playlist not found, skipping", "playlist", uploads)
		}
	}

	if !f.uploadsOnly && !col.full() {
		if err := col.addChannelPlaylists(ctx, channelID, f.playlistsLimit); err != nil {
			res.Pages = col.pages
			return res, err
		}
	}

	res.Pages = col.pages
	if len(col.newIDs) == 0 {
		return res, nil
	}

	metas, skipped, err := f.client.VideosMetadata(ctx, col.newIDs)
	if err != nil {
		return res, fmt.Errorf("video metadata for %s: %w", channelID, err)
	}
	res.ParseSkipped += skipped

	for _, m := range metas {
		if f.since != nil && !publishedOnOrAfter(m.PublishedAt, *f.since) {
			continue
		}
		res.Candidates = append(res.Candidates, domain.Candidate{
			ExternalID:  m.ID,
			Title:       m.Title,
			PublishedAt: m.PublishedAt,
		})
	}
	return res, nil
}

// ensureChannelID returns the stored channel id, resolving and persisting
// it on first use.
func (f *Fetcher) ensureChannelID(ctx context.Context, src domain.Source) (string, error) {
	if src.ChannelID != "" {
		return src.ChannelID, nil
	}
	id, err := f.client.ResolveChannelID(ctx, src.URL, src.Name)
	if err != nil {
		return "", err
	}
	if f.saver != nil {
		if err := f.saver.SetChannelID(ctx, src.ID, id); err != nil {
			f.log.Warn("channel id not persisted", "source_id", src.ID, "err", err)
		}
	}
	f.log.Info("resolved channel id", "source_id", src.ID, "channel_id", id)
	return id, nil
}

// collector accumulates unseen video ids across a channel's playlists,
// deduplicating ids that appear in more than one list.
type collector struct {
	client   *Client
	bound    domain.Boundary
	log      *slog.Logger
	maxItems int

	seen   map[string]bool
	newIDs []string
	pages  int
}

func (c *collector) full() bool {
	return c.maxItems > 0 && len(c.newIDs) >= c.maxItems
}

// addPlaylist pages through one playlist. A page with items but nothing
// new ends the playlist: everything older is already ingested.
func (c *collector) addPlaylist(ctx context.Context, playlistID string) error {
	token := ""
	for {
		ids, next, err := c.client.PlaylistItemsPage(ctx, playlistID, token)
		if err != nil {
			return err
		}
		c.pages++
		pageNew := 0
		for _, id := range ids {
			if c.seen[id] {
				continue
			}
			c.seen[id] = true
			known, err := c.bound.Known(ctx, id)
			if err != nil {
				return fmt.Errorf("boundary check %s: %w", id, err)
			}
			if known {
				continue
			}
			pageNew++
			c.newIDs = append(c.newIDs, id)
			if c.full() {
				return nil
			}
		}
		if len(ids) > 0 && pageNew == 0 {
			c.log.Debug("page fully known, stopping playlist", "playlist", playlistID)
			return nil
		}
		if next == "" {
			return nil
		}
		token = next
	}
}

// addChannelPlaylists scans the channel's curated playlists, tolerating
// lists that disappear between paging and fetching.
func (c *collector) addChannelPlaylists(ctx context.Context, channelID string, limit int) error {
	scanned := 0
	token := ""
	for {
		playlists, next, err := c.client.PlaylistsPage(ctx, channelID, token)
		if err != nil {
			return fmt.Errorf("playlists for %s: %w", channelID, err)
		}
		c.pages++
		for _, pid := range playlists {
			if limit > 0 && scanned >= limit {
				return nil
			}
			if c.full() {
				return nil
			}
			scanned++
			if err := c.addPlaylist(ctx, pid); err != nil {
				if errors.Is(err, ErrPlaylistNotFound) {
					c.log.Warn("playlist not found, skipping", "playlist", pid)
					continue
				}
				return fmt.Errorf("playlist %s: %w", pid, err)
			}
		}
		if next == "" {
			return nil
		}
		token = next
	}
}

func publishedOnOrAfter(ts *time.Time, day time.Time) bool {
	if ts == nil {
		return false
	}
	y1, m1, d1 := ts.UTC().Date()
	y2, m2, d2 := day.UTC().Date()
	if y1 != y2 {
		return y1 > y2
	}
	if m1 != m2 {
		return m1 > m2
	}
	return d1 >= d2
}
