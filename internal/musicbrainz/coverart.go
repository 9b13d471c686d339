package musicbrainz

import (
	"context"
	"fmt"
	"net/http"
)

const (
	coverArtBaseURL = "https://coverartarchive.org"
	// coverSize matches the 512px presence artwork closely.
	coverSize = 500
)

// FrontCoverURL returns the Cover Art Archive URL of a release's front
// cover, after checking that it exists. ErrNotFound means the release has
// no front cover.
func (c *Client) FrontCoverURL(ctx context.Context, releaseID string) (string, error) {
	if releaseID == "" {
		return "", ErrNotFound
	}
	if err := c.waitForRateLimit(ctx); err != nil {
		return "", err
	}

	coverURL := fmt.Sprintf("%s/release/%s/front-%d", c.coverURL, releaseID, coverSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, coverURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return coverURL, nil
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("cover art archive status %d", resp.StatusCode)
	}
}

// FindCover resolves a front cover URL for a track. A known release id
// skips the search.
func (c *Client) FindCover(ctx context.Context, artist, album, releaseID string) (string, error) {
	if releaseID == "" {
		rel, err := c.SearchRelease(ctx, artist, album)
		if err != nil {
			return "", err
		}
		releaseID = rel.ID
	}
	return c.FrontCoverURL(ctx, releaseID)
}
