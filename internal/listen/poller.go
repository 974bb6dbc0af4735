// Package listen follows a friend's presence feed and mirrors their playback.
package listen

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/rs/zerolog"
)

// ErrActivityFetch is returned when the presence feed cannot be read.
var ErrActivityFetch = errors.New("activity fetch failed")

// Activity is one friend's entry in a presence snapshot.
type Activity struct {
	UserURI     string
	UserName    string
	TrackURI    string
	TrackName   string
	ArtistName  string
	TimestampMS int64 // When the friend started the track, unix milliseconds
}

// FeedClient is the presence-feed subset of the Spotify client.
type FeedClient interface {
	FriendActivity(ctx context.Context) ([]spotify.Friend, error)
}

// Poller reads presence snapshots
type Poller struct {
	client FeedClient
	logger zerolog.Logger
}

// NewPoller creates a new Poller instance
func NewPoller(client FeedClient, logger zerolog.Logger) *Poller {
	return &Poller{
		client: client,
		logger: logger.With().Str("component", "poller").Logger(),
	}
}

// Fetch returns the current presence snapshot. Every failure wraps
// ErrActivityFetch; retry is the caller's concern.
func (p *Poller) Fetch(ctx context.Context) ([]Activity, error) {
	friends, err := p.client.FriendActivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrActivityFetch, err)
	}

	activities := make([]Activity, 0, len(friends))
	for _, f := range friends {
		activities = append(activities, Activity{
			UserURI:     f.User.URI,
			UserName:    f.User.Name,
			TrackURI:    f.Track.URI,
			TrackName:   f.Track.Name,
			ArtistName:  f.Track.Artist.Name,
			TimestampMS: f.Timestamp,
		})
	}

	p.logger.Debug().
		Int("friends", len(activities)).
		Msg("Poll update")

	return activities, nil
}
