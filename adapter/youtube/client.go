// Package youtube fetches channel uploads and playlists through the
// YouTube Data API v3.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"govcomms/domain"
	"govcomms/internal/retry"
)

const (
	defaultBaseURL   = "https://www.googleapis.com"
	defaultUserAgent = "govcomms-bot/1.0 (+contact: admin@localhost)"
	defaultAPIDelay  = 200 * time.Millisecond
	pageSize         = 50
)

// ErrPlaylistNotFound marks a 404 playlistNotFound response; callers skip
// the playlist and continue.
var ErrPlaylistNotFound = errors.New("playlist not found")

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithRetryPolicy replaces the transient-failure retry budget.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithLimiter replaces the inter-call pacer; nil disables pacing.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// Client is a YouTube Data API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPClient
	policy     retry.Policy
	limiter    *rate.Limiter
}

// NewClient creates a YouTube API client authenticated by API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     retry.Default,
		limiter:    rate.NewLimiter(rate.Every(defaultAPIDelay), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadsPlaylistID returns the channel's uploads playlist, or empty when
// the channel exposes none.
func (c *Client) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	body, err := c.doRequest(ctx, "channels", url.Values{
		"part":       {"contentDetails"},
		"id":         {channelID},
		"maxResults": {"1"},
	})
	if err != nil {
		return "", err
	}
	var resp channelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: channels response: %w", domain.ErrParse, err)
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// PlaylistItemsPage lists one page of video ids from a playlist.
func (c *Client) PlaylistItemsPage(ctx context.Context, playlistID, pageToken string) (ids []string, next string, err error) {
	params := url.Values{
		"part":       {"contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {fmt.Sprint(pageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	body, err := c.doRequest(ctx, "playlistItems", params)
	if err != nil {
		return nil, "", err
	}
	var resp playlistItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("%w: playlistItems response: %w", domain.ErrParse, err)
	}
	for _, it := range resp.Items {
		if it.ContentDetails.VideoID != "" {
			ids = append(ids, it.ContentDetails.VideoID)
		}
	}
	return ids, resp.NextPageToken, nil
}

// PlaylistsPage lists one page of the channel's playlist ids.
func (c *Client) PlaylistsPage(ctx context.Context, channelID, pageToken string) (ids []string, next string, err error) {
	params := url.Values{
		"part":       {"id,snippet"},
		"channelId":  {channelID},
		"maxResults": {fmt.Sprint(pageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	body, err := c.doRequest(ctx, "playlists", params)
	if err != nil {
		return nil, "", err
	}
	var resp playlistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, "", fmt.Errorf("%w: playlists response: %w", domain.ErrParse, err)
	}
	for _, it := range resp.Items {
		if it.ID != "" {
			ids = append(ids, it.ID)
		}
	}
	return ids, resp.NextPageToken, nil
}

// VideoMeta is the metadata kept for one video.
type VideoMeta struct {
	ID          string
	Title       string
	PublishedAt *time.Time
}

// VideosMetadata fetches snippet metadata in batches of fifty. Entries
// missing an id or snippet are counted in skipped, not failed.
func (c *Client) VideosMetadata(ctx context.Context, videoIDs []string) (metas []VideoMeta, skipped int, err error) {
	for start := 0; start < len(videoIDs); start += pageSize {
		end := start + pageSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		body, err := c.doRequest(ctx, "videos", url.Values{
			"part":       {"snippet,contentDetails"},
			"id":         {strings.Join(videoIDs[start:end], ",")},
			"maxResults": {fmt.Sprint(pageSize)},
		})
		if err != nil {
			return nil, skipped, err
		}
		var resp videosResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, skipped, fmt.Errorf("%w: videos response: %w", domain.ErrParse, err)
		}
		for _, it := range resp.Items {
			if it.ID == "" || (it.Snippet.Title == "" && it.Snippet.PublishedAt == "") {
				skipped++
				continue
			}
			m := VideoMeta{ID: it.ID, Title: it.Snippet.Title}
			if ts, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt); err == nil {
				m.PublishedAt = &ts
			}
			metas = append(metas, m)
		}
	}
	return metas, skipped, nil
}

// ResolveChannelID finds the UC id for a channel URL: a /channel/ path
// first, then the handle and username lookups, then a channel search by
// name as a last resort.
func (c *Client) ResolveChannelID(ctx context.Context, sourceURL, name string) (string, error) {
	if m := channelIDPattern.FindStringSubmatch(sourceURL); m != nil {
		return m[1], nil
	}
	if m := handlePattern.FindStringSubmatch(sourceURL); m != nil {
		if id, err := c.channelIDBy(ctx, "forHandle", m[1]); err == nil && id != "" {
			return id, nil
		}
	}
	if m := usernamePattern.FindStringSubmatch(sourceURL); m != nil {
		if id, err := c.channelIDBy(ctx, "forUsername", m[1]); err == nil && id != "" {
			return id, nil
		}
	}
	if name != "" {
		id, err := c.searchChannelID(ctx, name)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("channel id for %s unresolved", sourceURL)
}

func (c *Client) channelIDBy(ctx context.Context, param, value string) (string, error) {
	body, err := c.doRequest(ctx, "channels", url.Values{"part": {"id"}, param: {value}})
	if err != nil {
		return "", err
	}
	var resp channelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID, nil
}

func (c *Client) searchChannelID(ctx context.Context, term string) (string, error) {
	body, err := c.doRequest(ctx, "search", url.Values{
		"part":       {"id"},
		"type":       {"channel"},
		"maxResults": {"1"},
		"q":          {term},
	})
	if err != nil {
		return "", err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID.ChannelID, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("YT_API_KEY not set")
	}
	params.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s/youtube/v3/%s?%s", c.baseURL, endpoint, params.Encode())

	var body []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrTransientFetch, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %w", domain.ErrTransientFetch, err)
		}
		if resp.StatusCode != http.StatusOK {
			return handleAPIError(endpoint, resp.StatusCode, b)
		}
		body = b
		return nil
	})
	return body, err
}

func handleAPIError(endpoint string, statusCode int, body []byte) error {
	if statusCode == http.StatusNotFound && strings.Contains(string(body), "playlistNotFound") {
		return ErrPlaylistNotFound
	}
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return fmt.Errorf("%w: %s status %d", domain.ErrTransientFetch, endpoint, statusCode)
	default:
		return fmt.Errorf("%s error (status %d)", endpoint, statusCode)
	}
}

// API response types (private - implementation detail)

type channelsResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID string `json:"id"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
		} `json:"id"`
	} `json:"items"`
}
