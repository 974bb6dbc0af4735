// Package player turns play decisions into Web API playback commands.
package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/rs/zerolog"
)

// ErrRemoteRejection is returned when the Web API refuses a playback command.
var ErrRemoteRejection = errors.New("playback rejected")

// API is the subset of the Spotify client the player needs.
type API interface {
	Track(ctx context.Context, uriOrID string) (*spotify.Track, error)
	StartPlayback(ctx context.Context, deviceID, trackURI string, positionMS int64) error
}

// Player starts tracks on the user's device. It is driven by one
// synchronizer and is not safe for concurrent use.
type Player struct {
	api      API
	cache    *Cache
	deviceID string
	logger   zerolog.Logger

	last CachedTrack // Track most recently resolved by Duration
}

// New creates a Player. cache may be nil to always ask the API.
// An empty deviceID targets the user's active device.
func New(api API, cache *Cache, deviceID string, logger zerolog.Logger) *Player {
	return &Player{
		api:      api,
		cache:    cache,
		deviceID: deviceID,
		logger:   logger.With().Str("component", "player").Logger(),
	}
}

// Duration returns the length of trackURI in milliseconds.
func (p *Player) Duration(ctx context.Context, trackURI string) (int64, error) {
	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, trackURI)
		if err != nil {
			p.logger.Warn().Err(err).Str("uri", trackURI).Msg("Track cache lookup failed")
		} else if ok {
			p.last = cached
			return cached.DurationMS, nil
		}
	}

	track, err := p.api.Track(ctx, trackURI)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch track %s: %w", trackURI, err)
	}

	p.last = CachedTrack{URI: trackURI, Name: track.Name, DurationMS: track.DurationMS}

	if p.cache != nil {
		if err := p.cache.Put(ctx, trackURI, track.Name, track.DurationMS); err != nil {
			p.logger.Warn().Err(err).Str("uri", trackURI).Msg("Failed to cache track")
		}
	}

	return track.DurationMS, nil
}

// StartPlayback plays trackURI from offsetMS. A non-2xx answer from the API
// is wrapped in ErrRemoteRejection.
func (p *Player) StartPlayback(ctx context.Context, trackURI string, offsetMS int64) error {
	if err := p.api.StartPlayback(ctx, p.deviceID, trackURI, offsetMS); err != nil {
		if spotify.StatusOf(err) != 0 {
			return fmt.Errorf("%w: %w", ErrRemoteRejection, err)
		}
		return fmt.Errorf("failed to start playback: %w", err)
	}

	name, durationMS := trackURI, int64(-1)
	if p.last.URI == trackURI {
		if p.last.Name != "" {
			name = p.last.Name
		}
		durationMS = p.last.DurationMS
	}

	// No position line once the track has already ended
	if durationMS >= 0 && offsetMS >= durationMS {
		p.logger.Debug().
			Str("uri", trackURI).
			Int64("offset_ms", offsetMS).
			Msg("Track already finished")
		return nil
	}

	p.logger.Info().
		Str("uri", trackURI).
		Msgf("Playing: %s (%s)", name, formatPosition(offsetMS))

	return nil
}

// formatPosition renders milliseconds as m:ss.
func formatPosition(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
