package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"govcomms/domain"
)

type boundaryFunc func(ctx context.Context, externalID string) (bool, error)

func (f boundaryFunc) Known(ctx context.Context, externalID string) (bool, error) {
	return f(ctx, externalID)
}

func knownSet(ids ...string) boundaryFunc {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(_ context.Context, id string) (bool, error) { return set[id], nil }
}

type fakeSaver struct {
	byID map[int64]string
}

func (s *fakeSaver) SetChannelID(_ context.Context, id int64, channelID string) error {
	if s.byID == nil {
		s.byID = map[int64]string{}
	}
	s.byID[id] = channelID
	return nil
}

func channelJSON(uploads string) string {
	return fmt.Sprintf(`{"items":[{"id":"UCchan","contentDetails":{"relatedPlaylists":{"uploads":%q}}}]}`, uploads)
}

func playlistItemsJSON(next string, ids ...string) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = fmt.Sprintf(`{"contentDetails":{"videoId":%q}}`, id)
	}
	return fmt.Sprintf(`{"nextPageToken":%q,"items":[%s]}`, next, strings.Join(items, ","))
}

func playlistsJSON(next string, ids ...string) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = fmt.Sprintf(`{"id":%q}`, id)
	}
	return fmt.Sprintf(`{"nextPageToken":%q,"items":[%s]}`, next, strings.Join(items, ","))
}

// serveVideos answers a videos request with metadata for the requested ids
// present in meta, in request order.
func serveVideos(w http.ResponseWriter, r *http.Request, meta map[string][2]string) {
	var items []string
	for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
		if m, ok := meta[id]; ok {
			items = append(items, fmt.Sprintf(`{"id":%q,"snippet":{"title":%q,"publishedAt":%q}}`, id, m[0], m[1]))
		}
	}
	fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
}

func TestFetchCandidatesUploads(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlistItems":
			fmt.Fprint(w, playlistItemsJSON("", "v1", "v2"))
		case "/youtube/v3/videos":
			serveVideos(w, r, map[string][2]string{"v2": {"New video", "2024-03-02T09:00:00Z"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil, WithUploadsOnly(true))
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet("v1"))
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 1 || res.Pages != 1 {
		t.Fatalf("got %d candidates, %d pages", len(res.Candidates), res.Pages)
	}
	cand := res.Candidates[0]
	if cand.ExternalID != "v2" || cand.Title != "New video" || cand.PublishedAt == nil {
		t.Fatalf("candidate = %+v", cand)
	}
}

func TestFetchCandidatesStopsOnFullyKnownPage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlistItems":
			if tok := r.URL.Query().Get("pageToken"); tok != "" {
				t.Errorf("page %q must not be requested once a page is fully known", tok)
			}
			fmt.Fprint(w, playlistItemsJSON("t2", "v1", "v2"))
		case "/youtube/v3/videos":
			t.Error("no metadata lookup expected without new ids")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil, WithUploadsOnly(true))
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet("v1", "v2"))
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 0 || res.Pages != 1 {
		t.Fatalf("got %d candidates, %d pages; want none and 1", len(res.Candidates), res.Pages)
	}
}

func TestFetchCandidatesSinceFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlistItems":
			fmt.Fprint(w, playlistItemsJSON("", "v1", "v2"))
		case "/youtube/v3/videos":
			serveVideos(w, r, map[string][2]string{
				"v1": {"Fresh", "2024-03-01T09:00:00Z"},
				"v2": {"Old", "2024-02-15T09:00:00Z"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil, WithUploadsOnly(true), WithSince(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].ExternalID != "v1" {
		t.Fatalf("got %+v, want only the video published on the cutoff day", res.Candidates)
	}
}

func TestFetchCandidatesResolvesAndPersistsChannelID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlistItems":
			fmt.Fprint(w, playlistItemsJSON("", "v1"))
		case "/youtube/v3/videos":
			serveVideos(w, r, map[string][2]string{"v1": {"First", "2024-03-01T09:00:00Z"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	saver := &fakeSaver{}
	f := New(c, saver, WithUploadsOnly(true))
	src := domain.Source{ID: 7, URL: "https://www.youtube.com/channel/UCabcdef12345/videos"}
	res, err := f.FetchCandidates(context.Background(), src, knownSet())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if saver.byID[7] != "UCabcdef12345" {
		t.Fatalf("channel id not persisted, saver = %v", saver.byID)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates", len(res.Candidates))
	}
}

func TestFetchCandidatesSkipsVanishedPlaylist(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlists":
			fmt.Fprint(w, playlistsJSON("", "PLgone", "PLgood"))
		case "/youtube/v3/playlistItems":
			switch r.URL.Query().Get("playlistId") {
			case "UUchan":
				fmt.Fprint(w, playlistItemsJSON("", "v1"))
			case "PLgone":
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"errors":[{"reason":"playlistNotFound"}]}}`)
			case "PLgood":
				fmt.Fprint(w, playlistItemsJSON("", "v1", "v2"))
			}
		case "/youtube/v3/videos":
			serveVideos(w, r, map[string][2]string{
				"v1": {"First", "2024-03-01T09:00:00Z"},
				"v2": {"Second", "2024-03-02T09:00:00Z"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil)
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want v1 and v2 once each", len(res.Candidates))
	}
	if res.Candidates[0].ExternalID != "v1" || res.Candidates[1].ExternalID != "v2" {
		t.Fatalf("candidates = %+v", res.Candidates)
	}
}

func TestFetchCandidatesMaxItemsSkipsPlaylistScan(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			fmt.Fprint(w, channelJSON("UUchan"))
		case "/youtube/v3/playlists":
			t.Error("playlist scan must be skipped once the cap is reached")
		case "/youtube/v3/playlistItems":
			fmt.Fprint(w, playlistItemsJSON("", "v1", "v2", "v3"))
		case "/youtube/v3/videos":
			if got := r.URL.Query().Get("id"); got != "v1" {
				t.Errorf("metadata requested for %q, want v1", got)
			}
			serveVideos(w, r, map[string][2]string{"v1": {"First", "2024-03-01T09:00:00Z"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil, WithMaxItems(1))
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
}

func TestFetchCandidatesPlaylistsOnly(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/channels":
			t.Error("uploads lookup must be skipped in playlists-only mode")
		case "/youtube/v3/playlists":
			fmt.Fprint(w, playlistsJSON("", "PLx"))
		case "/youtube/v3/playlistItems":
			fmt.Fprint(w, playlistItemsJSON("", "v1"))
		case "/youtube/v3/videos":
			serveVideos(w, r, map[string][2]string{"v1": {"Curated", "2024-03-01T09:00:00Z"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	f := New(c, nil, WithPlaylistsOnly(true))
	res, err := f.FetchCandidates(context.Background(), domain.Source{ID: 1, ChannelID: "UCchan"}, knownSet())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Title != "Curated" {
		t.Fatalf("got %+v", res.Candidates)
	}
}
