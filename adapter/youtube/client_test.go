package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"govcomms/domain"
	"govcomms/internal/retry"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRetryPolicy(retry.Policy{MaxAttempts: 2, InitialWait: time.Millisecond}),
		WithLimiter(nil),
	)
}

func TestUploadsPlaylistID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/channels" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("id") != "UCchan" || q.Get("key") != "test-key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"items":[{"id":"UCchan","contentDetails":{"relatedPlaylists":{"uploads":"UUchan"}}}]}`)
	}))

	got, err := c.UploadsPlaylistID(context.Background(), "UCchan")
	if err != nil {
		t.Fatalf("UploadsPlaylistID: %v", err)
	}
	if got != "UUchan" {
		t.Fatalf("got %q, want UUchan", got)
	}
}

func TestUploadsPlaylistIDUnknownChannel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	}))

	got, err := c.UploadsPlaylistID(context.Background(), "UCnobody")
	if err != nil || got != "" {
		t.Fatalf("got %q, %v; want empty and nil", got, err)
	}
}

func TestPlaylistItemsPagePagination(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"nextPageToken":"t2","items":[{"contentDetails":{"videoId":"v1"}},{"contentDetails":{"videoId":"v2"}}]}`)
		case "t2":
			fmt.Fprint(w, `{"items":[{"contentDetails":{"videoId":"v3"}}]}`)
		default:
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
		}
	}))

	ids, next, err := c.PlaylistItemsPage(context.Background(), "UUchan", "")
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(ids) != 2 || ids[0] != "v1" || next != "t2" {
		t.Fatalf("page 1: ids=%v next=%q", ids, next)
	}

	ids, next, err = c.PlaylistItemsPage(context.Background(), "UUchan", "t2")
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(ids) != 1 || ids[0] != "v3" || next != "" {
		t.Fatalf("page 2: ids=%v next=%q", ids, next)
	}
}

func TestVideosMetadataSkipsBareEntries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[
			{"id":"v1","snippet":{"title":"Launch","publishedAt":"2024-03-01T09:00:00Z"}},
			{"id":"v2","snippet":{"title":"","publishedAt":""}},
			{"id":"","snippet":{"title":"ghost","publishedAt":"2024-03-02T09:00:00Z"}}
		]}`)
	}))

	metas, skipped, err := c.VideosMetadata(context.Background(), []string{"v1", "v2", "v3"})
	if err != nil {
		t.Fatalf("VideosMetadata: %v", err)
	}
	if len(metas) != 1 || skipped != 2 {
		t.Fatalf("got %d metas, %d skipped; want 1 and 2", len(metas), skipped)
	}
	m := metas[0]
	if m.ID != "v1" || m.Title != "Launch" {
		t.Fatalf("meta = %+v", m)
	}
	if m.PublishedAt == nil || !m.PublishedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("published = %v", m.PublishedAt)
	}
}

func TestVideosMetadataBatchesLargeSets(t *testing.T) {
	var mu sync.Mutex
	var batches []int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		mu.Lock()
		batches = append(batches, len(ids))
		mu.Unlock()
		var items []string
		for _, id := range ids {
			items = append(items, fmt.Sprintf(`{"id":%q,"snippet":{"title":"t","publishedAt":"2024-03-01T09:00:00Z"}}`, id))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	}))

	var ids []string
	for i := 0; i < 51; i++ {
		ids = append(ids, fmt.Sprintf("v%02d", i))
	}
	metas, skipped, err := c.VideosMetadata(context.Background(), ids)
	if err != nil {
		t.Fatalf("VideosMetadata: %v", err)
	}
	if len(metas) != 51 || skipped != 0 {
		t.Fatalf("got %d metas, %d skipped", len(metas), skipped)
	}
	if len(batches) != 2 || batches[0] != 50 || batches[1] != 1 {
		t.Fatalf("batches = %v, want [50 1]", batches)
	}
}

func TestPlaylistNotFoundIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"errors":[{"reason":"playlistNotFound"}]}}`)
	}))

	_, _, err := c.PlaylistItemsPage(context.Background(), "PLgone", "")
	if !errors.Is(err, ErrPlaylistNotFound) {
		t.Fatalf("got %v, want ErrPlaylistNotFound", err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestServerErrorsAreTransient(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, _, err := c.PlaylistItemsPage(context.Background(), "UUchan", "")
	if !errors.Is(err, domain.ErrTransientFetch) {
		t.Fatalf("got %v, want a transient error", err)
	}
	if calls != 2 {
		t.Fatalf("got %d calls, want the full retry budget of 2", calls)
	}
}

func TestMalformedResponseIsParseError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
	}))

	_, err := c.UploadsPlaylistID(context.Background(), "UCchan")
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("got %v, want a parse error", err)
	}
}

func TestResolveChannelIDFromURL(t *testing.T) {
	c := NewClient("test-key")
	got, err := c.ResolveChannelID(context.Background(), "https://www.youtube.com/channel/UC0123456789x/videos", "")
	if err != nil {
		t.Fatalf("ResolveChannelID: %v", err)
	}
	if got != "UC0123456789x" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveChannelIDByHandle(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("forHandle"); got != "digigov" {
			t.Errorf("forHandle = %q", got)
		}
		fmt.Fprint(w, `{"items":[{"id":"UChandled1234"}]}`)
	}))

	got, err := c.ResolveChannelID(context.Background(), "https://www.youtube.com/@digigov", "")
	if err != nil || got != "UChandled1234" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveChannelIDByUsername(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("forUsername"); got != "olddept" {
			t.Errorf("forUsername = %q", got)
		}
		fmt.Fprint(w, `{"items":[{"id":"UCusername123"}]}`)
	}))

	got, err := c.ResolveChannelID(context.Background(), "https://youtube.com/user/olddept", "")
	if err != nil || got != "UCusername123" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveChannelIDFallsBackToSearch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Dept Channel" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, `{"items":[{"id":{"channelId":"UCsearched123"}}]}`)
	}))

	got, err := c.ResolveChannelID(context.Background(), "https://videos.example.org/dept", "Dept Channel")
	if err != nil || got != "UCsearched123" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveChannelIDUnresolvable(t *testing.T) {
	c := NewClient("test-key")
	_, err := c.ResolveChannelID(context.Background(), "https://videos.example.org/dept", "")
	if err == nil || !strings.Contains(err.Error(), "unresolved") {
		t.Fatalf("got %v", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient("")
	_, err := c.UploadsPlaylistID(context.Background(), "UCchan")
	if err == nil || !strings.Contains(err.Error(), "YT_API_KEY") {
		t.Fatalf("got %v", err)
	}
}
