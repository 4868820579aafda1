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

// HTTPCatalogSource lists sweep targets from the catalog service over
// HTTP. The service contract is GET {base}/catalog/{segment} returning
// {"tracks": [{"ref": "...", "label": "..."}]}.
type HTTPCatalogSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalogSource creates a catalog source for the given base URL.
func NewHTTPCatalogSource(baseURL string) (*HTTPCatalogSource, error) {
	if baseURL == "" {
		return nil, errors.New("catalog base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid catalog base URL: %w", err)
	}
	return &HTTPCatalogSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ListTracks returns the ordered targets of a catalog segment. The catalog
// service guarantees stable ordering per segment, which resumed sweeps
// rely on.
func (c *HTTPCatalogSource) ListTracks(ctx context.Context, segment string) ([]Target, error) {
	endpoint := fmt.Sprintf("%s/catalog/%s", c.baseURL, url.PathEscape(segment))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var body struct {
		Tracks []struct {
			Ref   string `json:"ref"`
			Label string `json:"label"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}

	targets := make([]Target, 0, len(body.Tracks))
	for _, track := range body.Tracks {
		if track.Ref == "" {
			continue
		}
		label := track.Label
		if label == "" {
			label = track.Ref
		}
		targets = append(targets, Target{Ref: track.Ref, Label: label})
	}
	return targets, nil
}
