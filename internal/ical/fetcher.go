package ical

import (
	"context"
	"io"
	"net/http"
	"time"

	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

const maxFeedBytes = 4 << 20 // feeds past 4MB are misconfigured, not big

// Fetcher downloads ICS feeds over HTTP.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a fetcher with the given timeout applied per request.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads and parses the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]BlockedRange, error) {
	if url == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "feed url required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build feed request")
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelUnavailable, err, "fetch calendar feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeChannelUnavailable, "calendar feed returned non-200").
			WithDetails(map[string]any{"status": resp.StatusCode, "url": url})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelUnavailable, err, "read calendar feed")
	}

	return Parse(string(body))
}
