// Package musicbrainz finds release cover art through the MusicBrainz and
// Cover Art Archive web services.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	baseURL      = "https://musicbrainz.org/ws/2"
	userAgent    = "presence/1.0 (https://github.com/llehouerou/presence)"
	rateLimitDur = time.Second // MusicBrainz allows one request per second

	maxRetries   = 3
	initialDelay = 2 * time.Second
	maxDelay     = 30 * time.Second

	// minScore rejects weak search matches.
	minScore = 90
)

// ErrNotFound is returned when no release or cover matches.
var ErrNotFound = errors.New("no matching release")

// Client provides access to the MusicBrainz API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	coverURL    string
	lastRequest time.Time
	mu          sync.Mutex
}

// NewClient creates a new MusicBrainz API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		coverURL:   coverArtBaseURL,
	}
}

// SearchRelease returns the best release for artist and album.
func (c *Client) SearchRelease(ctx context.Context, artist, album string) (Release, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return Release{}, ErrNotFound
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("release:%s AND artist:%s", quote(album), quote(artist)))
	params.Set("fmt", "json")
	params.Set("limit", "5")

	var result searchResponse
	if err := c.getJSON(ctx, c.baseURL+"/release?"+params.Encode(), &result); err != nil {
		return Release{}, err
	}

	for _, r := range result.Releases {
		if r.Score < minScore {
			continue
		}
		return Release{
			ID:     r.ID,
			Title:  r.Title,
			Artist: extractArtist(r.ArtistCredit),
			Score:  r.Score,
		}, nil
	}
	return Release{}, ErrNotFound
}

func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	if err := c.waitForRateLimit(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// waitForRateLimit ensures we don't exceed MusicBrainz rate limits.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elapsed := time.Since(c.lastRequest); elapsed < rateLimitDur {
		if err := sleep(ctx, rateLimitDur-elapsed); err != nil {
			return err
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// doRequestWithRetry retries network errors and 5xx responses with
// exponential backoff.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = min(delay*2, maxDelay)
			if err := c.waitForRateLimit(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode < 500 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries+1, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// quote escapes a Lucene phrase.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(strings.TrimSpace(s)) + `"`
}

func extractArtist(credits []artistCredit) string {
	var b strings.Builder
	for _, c := range credits {
		name := c.Name
		if name == "" {
			name = c.Artist.Name
		}
		b.WriteString(name + c.JoinPhrase)
	}
	return b.String()
}
