package artwork

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultUploadURL is the freeimage.host upload endpoint.
	DefaultUploadURL = "https://freeimage.host/api/1/upload"
	userAgent        = "presence/1.0 (https://github.com/llehouerou/presence)"
)

// ErrNoURL is returned when the host accepted the upload but sent no URL.
var ErrNoURL = errors.New("upload response has no image url")

// Uploader posts images to a Chevereto-compatible host.
type Uploader struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewUploader creates an uploader. An empty endpoint uses DefaultUploadURL.
func NewUploader(endpoint, apiKey string) *Uploader {
	if endpoint == "" {
		endpoint = DefaultUploadURL
	}
	return &Uploader{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type uploadResponse struct {
	StatusCode int `json:"status_code"`
	Image      struct {
		URL string `json:"url"`
	} `json:"image"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends data and returns the hosted image URL.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("source", base64.StdEncoding.EncodeToString(data)); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if err := form.WriteField("format", "json"); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	params := url.Values{}
	params.Set("key", u.apiKey)
	reqURL := u.endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var result uploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status: %s", resp.Status)
		}
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error.Message != "" {
			return "", fmt.Errorf("upload rejected (%s): %s", resp.Status, result.Error.Message)
		}
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}
	if result.Image.URL == "" {
		return "", ErrNoURL
	}
	return result.Image.URL, nil
}
