// Package spotify provides a small client for the Spotify Web API and the
// web player's presence feed.
//
// Example usage:
//
//	import "github.com/jfmyers9/tagalong/pkg/spotify"
//
//	client := spotify.NewClient(spotify.Config{
//	    HTTPClient: &http.Client{Transport: &oauth2.Transport{Source: session.TokenSource(ctx)}},
//	})
//
//	friends, err := client.FriendActivity(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
package spotify

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds client configuration.
type Config struct {
	HTTPClient   *http.Client  // Optional: authenticated HTTP client (defaults to http.DefaultClient)
	APIBaseURL   string        // Optional: Web API base URL (defaults to DefaultAPIBaseURL)
	PresenceURL  string        // Optional: friend presence URL (defaults to DefaultPresenceURL)
	UserAgent    string        // Optional: User-Agent header (defaults to DefaultUserAgent)
	RateLimit    float64       // Optional: requests per second (defaults to 10, negative disables)
	MaxRetries   int           // Optional: attempts for retryable failures (defaults to 3)
	RetryBackoff time.Duration // Optional: initial retry backoff (defaults to 1s)
	Logger       Logger        // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Spotify operations.
type Client struct {
	httpClient   *http.Client
	apiBaseURL   string
	presenceURL  string
	userAgent    string
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
	logger       Logger
}

const (
	// DefaultAPIBaseURL is the default Spotify Web API endpoint.
	DefaultAPIBaseURL = "https://api.spotify.com/v1"

	// DefaultPresenceURL is the web player's friend activity feed.
	DefaultPresenceURL = "https://guc-spclient.spotify.com/presence-view/v1/buddylist"

	// DefaultUserAgent mimics a desktop browser; the presence feed rejects unknown agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/131.0.0.0 Safari/537.36"

	defaultRateLimit    = 10
	defaultMaxRetries   = 3
	defaultRetryBackoff = 1 * time.Second
)

// NewClient creates a new Spotify client. Zero-valued fields fall back to defaults.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}

	presenceURL := cfg.PresenceURL
	if presenceURL == "" {
		presenceURL = DefaultPresenceURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RateLimit < 0:
		limiter = rate.NewLimiter(rate.Inf, 1)
	case cfg.RateLimit == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultRateLimit), 1)
	default:
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	return &Client{
		httpClient:   httpClient,
		apiBaseURL:   apiBaseURL,
		presenceURL:  presenceURL,
		userAgent:    userAgent,
		limiter:      limiter,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		logger:       cfg.Logger,
	}
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
