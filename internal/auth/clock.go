package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jfmyers9/tagalong/pkg/spotify"
)

// DefaultServerTimeURL is any Spotify edge host; only its Date header is used.
const DefaultServerTimeURL = "https://open.spotify.com/"

// ServerClock reads authoritative time from a server's Date header.
type ServerClock struct {
	url        string
	httpClient *http.Client
}

// NewServerClock creates a ServerClock for url. A nil client uses http.DefaultClient.
func NewServerClock(url string, client *http.Client) *ServerClock {
	if url == "" {
		url = DefaultServerTimeURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ServerClock{url: url, httpClient: client}
}

// Fetch issues a HEAD request and returns the Date header as unix seconds.
// There is no retry; callers decide.
func (c *ServerClock) Fetch(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClockFetch, err)
	}
	req.Header.Set("User-Agent", spotify.DefaultUserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrClockFetch, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("%w: status %d", ErrClockFetch, resp.StatusCode)
	}

	date := resp.Header.Get("Date")
	if date == "" {
		return 0, fmt.Errorf("%w: missing Date header", ErrClockFetch)
	}

	t, err := http.ParseTime(date)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid Date header %q: %v", ErrClockFetch, date, err)
	}

	return t.Unix(), nil
}
