package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jfmyers9/tagalong/internal/auth"
	"github.com/jfmyers9/tagalong/internal/config"
	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// services holds the collaborators shared by every authenticated command
type services struct {
	cfg        *config.Config
	logger     zerolog.Logger
	httpClient *http.Client
	secrets    *auth.SecretStore
	clock      *auth.ServerClock
}

// loadServices reads configuration and builds the shared clients. The
// configuration is validated unless the command works without a cookie.
func loadServices(logger zerolog.Logger, requireCookie bool) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if requireCookie {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: cfg.Auth.Timeout}

	return &services{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		secrets:    auth.NewSecretStore(cfg.URLs.Secrets, httpClient, logger),
		clock:      auth.NewServerClock(cfg.URLs.ServerTime, httpClient),
	}, nil
}

// openSession loads the TOTP secrets and obtains the first access token
func (s *services) openSession(ctx context.Context) (*auth.Session, error) {
	if err := s.secrets.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load TOTP secrets: %w", err)
	}

	session, err := auth.Open(ctx, auth.Options{
		Cookie:      s.cfg.Cookie,
		TokenURL:    s.cfg.URLs.Token,
		ProbeURL:    s.cfg.URLs.API + "/me",
		ServerClock: s.clock,
		Secrets:     s.secrets,
		HTTPClient:  s.httpClient,
		MaxAttempts: s.cfg.Auth.MaxAttempts,
		RetryDelay:  s.cfg.Auth.RetryDelay,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	return session, nil
}

// spotifyClient creates a Web API client authorized by session. Token
// refreshes triggered by requests run under ctx.
func (s *services) spotifyClient(ctx context.Context, session *auth.Session) *spotify.Client {
	httpClient := &http.Client{
		Timeout: s.cfg.Auth.Timeout,
		Transport: &oauth2.Transport{
			Source: session.TokenSource(ctx),
			Base:   http.DefaultTransport,
		},
	}

	return spotify.NewClient(spotify.Config{
		HTTPClient:  httpClient,
		APIBaseURL:  s.cfg.URLs.API,
		PresenceURL: s.cfg.URLs.Presence,
		RateLimit:   s.cfg.API.RateLimit,
		Logger:      zerologAdapter{logger: s.logger.With().Str("component", "spotify").Logger()},
	})
}

// zerologAdapter satisfies spotify.Logger
type zerologAdapter struct {
	logger zerolog.Logger
}

func (z zerologAdapter) Debugf(format string, args ...interface{}) {
	z.logger.Debug().Msgf(format, args...)
}
