// Package auth derives short-lived Web API bearer tokens from a long-lived
// sp_dc cookie the way the web player does: a TOTP computed from server time
// and a rotating secret set is exchanged at the token endpoint, and the
// resulting token is probed before it is trusted.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// DefaultTokenURL is the web player's token endpoint.
	DefaultTokenURL = "https://open.spotify.com/api/token"

	// DefaultProbeURL is called with a fresh token to check that it works.
	DefaultProbeURL = spotify.DefaultAPIBaseURL + "/me"

	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond

	reasonTransport = "transport"
	reasonInit      = "init"
)

// AccessToken is the bearer credential held by a Session.
type AccessToken struct {
	Token        string
	ClientID     string
	ExpirationMs int64 // Unix milliseconds
}

// Expiration returns the expiry as a time.Time.
func (t AccessToken) Expiration() time.Time {
	return time.UnixMilli(t.ExpirationMs)
}

// Options configures a Session.
type Options struct {
	Cookie      string        // Required: sp_dc cookie value
	TokenURL    string        // Optional: defaults to DefaultTokenURL
	ProbeURL    string        // Optional: defaults to DefaultProbeURL
	ServerClock *ServerClock  // Required: source of server time
	Secrets     *SecretStore  // Required: TOTP secret set
	HTTPClient  *http.Client  // Optional: defaults to http.DefaultClient
	MaxAttempts int           // Optional: refresh attempts (defaults to 3)
	RetryDelay  time.Duration // Optional: delay between attempts (defaults to 500ms)
	Clock       clockwork.Clock
	Logger      zerolog.Logger
}

// Session owns an AccessToken and refreshes it on demand.
// At most one refresh is in flight per Session.
type Session struct {
	opts   Options
	clock  clockwork.Clock
	logger zerolog.Logger

	mu    sync.Mutex
	token AccessToken
}

// tokenResponse is the token endpoint's JSON body.
type tokenResponse struct {
	AccessToken                      string `json:"accessToken"`
	ClientID                         string `json:"clientId"`
	AccessTokenExpirationTimestampMs int64  `json:"accessTokenExpirationTimestampMs"`
	IsAnonymous                      bool   `json:"isAnonymous"`
}

// NewSession creates a Session without contacting the network.
func NewSession(opts Options) (*Session, error) {
	if opts.Cookie == "" {
		return nil, ErrMissingCookie
	}
	if opts.ServerClock == nil || opts.Secrets == nil {
		return nil, fmt.Errorf("auth: server clock and secret store are required")
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.ProbeURL == "" {
		opts.ProbeURL = DefaultProbeURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Session{
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger.With().Str("component", "auth").Logger(),
	}, nil
}

// Open creates a Session and performs the initial refresh. A failed initial
// refresh is returned alongside the usable Session; Get retries later.
func Open(ctx context.Context, opts Options) (*Session, error) {
	s, err := NewSession(opts)
	if err != nil {
		return nil, err
	}
	return s, s.Refresh(ctx)
}

// Snapshot returns an independent Session seeded with the current token.
// It shares the server clock and secret store but refreshes on its own.
func (s *Session) Snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Session{
		opts:   s.opts,
		clock:  s.clock,
		logger: s.logger,
		token:  s.token,
	}
}

// Status returns a copy of the current token.
func (s *Session) Status() AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Get returns the bearer token, refreshing first if it has expired. When the
// refresh fails the previous (possibly stale or empty) token is returned
// together with the refresh error.
func (s *Session) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.ExpirationMs > s.clock.Now().UnixMilli() {
		return s.token.Token, nil
	}

	err := s.refreshLocked(ctx)
	return s.token.Token, err
}

// Refresh obtains a new token, retrying up to MaxAttempts times.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked runs the retry loop. Must be called with s.mu held.
func (s *Session) refreshLocked(ctx context.Context) error {
	var lastErr error
	secretsRefreshed := false

	for attempt := 0; attempt < s.opts.MaxAttempts; {
		resp, reason, err := s.attempt(ctx)
		if err == nil {
			s.token = AccessToken{
				Token:        resp.AccessToken,
				ClientID:     resp.ClientID,
				ExpirationMs: resp.AccessTokenExpirationTimestampMs,
			}
			s.logger.Info().
				Str("reason", reason).
				Time("expires", s.token.Expiration()).
				Msg("Token refreshed")
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		s.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", s.opts.MaxAttempts).
			Msg("Token refresh attempt failed")

		// A retired secret version gets one reload per refresh, and the
		// retry does not count against the attempt budget.
		var tokenErr *TokenError
		if errors.As(err, &tokenErr) && tokenErr.TOTPVersionExpired() && !secretsRefreshed {
			secretsRefreshed = true
			s.logger.Info().Msg("TOTP secrets expired, fetching updated secrets")
			if err := s.opts.Secrets.Refresh(ctx); err == nil {
				continue
			} else {
				s.logger.Warn().Err(err).Msg("Failed to refresh TOTP secrets")
			}
		}

		attempt++
		if attempt < s.opts.MaxAttempts && !s.sleep(ctx, s.opts.RetryDelay) {
			lastErr = ctx.Err()
			break
		}
	}

	s.logger.Error().
		Err(lastErr).
		Int("max_attempts", s.opts.MaxAttempts).
		Msg("Failed to refresh token")

	return fmt.Errorf("%w: %w", ErrRefreshFailed, lastErr)
}

// attempt performs one refresh attempt: a "transport" exchange, then an
// "init" exchange if the first token does not validate.
func (s *Session) attempt(ctx context.Context) (*tokenResponse, string, error) {
	for _, reason := range []string{reasonTransport, reasonInit} {
		resp, err := s.exchange(ctx, reason)
		if err != nil {
			return nil, reason, err
		}
		if resp.AccessToken != "" && s.validate(ctx, resp.AccessToken, resp.ClientID) {
			return resp, reason, nil
		}
		s.logger.Debug().Str("reason", reason).Msg("Token failed validation")
	}
	return nil, reasonInit, ErrTokenValidation
}

// exchange calls the token endpoint once with a freshly generated TOTP.
func (s *Session) exchange(ctx context.Context, reason string) (*tokenResponse, error) {
	serverTime, err := s.opts.ServerClock.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	code, version, err := GenerateTOTP(serverTime, s.opts.Secrets.Set())
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"reason":      {reason},
		"productType": {"web-player"},
		"totp":        {code},
		"totpServer":  {code},
		"totpVer":     {strconv.Itoa(version)},
		"sTime":       {strconv.FormatInt(serverTime, 10)},
		"cTime":       {strconv.FormatInt(s.clock.Now().UnixMilli(), 10)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.TokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("User-Agent", spotify.DefaultUserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://open.spotify.com/")
	req.Header.Set("App-Platform", "WebPlayer")
	req.Header.Set("Cookie", "sp_dc="+s.opts.Cookie)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newTokenError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tr, nil
}

// validate probes the Web API with token and reports whether it was accepted.
func (s *Session) validate(ctx context.Context, token, clientID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.ProbeURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", spotify.DefaultUserAgent)
	if clientID != "" {
		req.Header.Set("Client-Id", clientID)
	}

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// sleep waits on the session clock. Returns false if ctx was cancelled.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

// TokenSource adapts the Session to oauth2.TokenSource, refreshing under ctx.
func (s *Session) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, session: s}
}

type tokenSource struct {
	ctx     context.Context
	session *Session
}

// Token returns the current bearer token. A stale token is still handed out
// so that the API's authorization errors surface to the caller; only a
// session that never obtained a token fails here.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.session.Get(ts.ctx)
	if token == "" {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoToken, err)
		}
		return nil, ErrNoToken
	}

	status := ts.session.Status()
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      status.Expiration(),
	}, nil
}
