package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrJobGone is returned when the server no longer knows the job, e.g. the
// ID never existed or its record was purged.
var ErrJobGone = errors.New("job not found on server")

// HTTPStatusSource polls the progress endpoint of a lyricwatch server.
// Progress reads are open, so no credentials are needed.
type HTTPStatusSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStatusSource creates a source for the given server base URL.
func NewHTTPStatusSource(baseURL string) (*HTTPStatusSource, error) {
	if baseURL == "" {
		return nil, errors.New("server base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server base URL: %w", err)
	}
	return &HTTPStatusSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// JobStatus fetches the current progress view of a job.
func (s *HTTPStatusSource) JobStatus(ctx context.Context, jobID uuid.UUID) (*Status, error) {
	endpoint := fmt.Sprintf("%s/api/jobs/%s/progress", s.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrJobGone, jobID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	return &status, nil
}
