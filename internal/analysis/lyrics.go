package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrLyricsNotFound is returned when the provider has no lyrics for a track.
var ErrLyricsNotFound = errors.New("lyrics not found")

// HTTPLyricsProvider fetches lyrics from an external lyrics service over
// HTTP. The service contract is GET {base}/lyrics/{ref} returning
// {"lyrics": "..."}.
type HTTPLyricsProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLyricsProvider creates a provider for the given base URL.
func NewHTTPLyricsProvider(baseURL string) (*HTTPLyricsProvider, error) {
	if baseURL == "" {
		return nil, errors.New("lyrics base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid lyrics base URL: %w", err)
	}
	return &HTTPLyricsProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// FetchLyrics retrieves the lyrics text for a track reference.
func (p *HTTPLyricsProvider) FetchLyrics(ctx context.Context, ref string) (string, error) {
	endpoint := fmt.Sprintf("%s/lyrics/%s", p.baseURL, url.PathEscape(ref))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building lyrics request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lyrics request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrLyricsNotFound, ref)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("lyrics service returned status %d", resp.StatusCode)
	}

	var body struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding lyrics response: %w", err)
	}
	if body.Lyrics == "" {
		return "", fmt.Errorf("%w: empty lyrics for %s", ErrLyricsNotFound, ref)
	}
	return body.Lyrics, nil
}
