package listen

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Status is the synchronizer's lifecycle state.
type Status int

const (
	Running Status = iota
	StoppedError
	StoppedIdle
	Cancelled
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case StoppedError:
		return "stopped_error"
	case StoppedIdle:
		return "stopped_idle"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the synchronizer has stopped.
func (s Status) Terminal() bool {
	return s != Running
}

// Defaults for Config zero values.
const (
	DefaultTickInterval  = time.Second
	DefaultErrorBackoff  = 5 * time.Second
	DefaultIdleThreshold = 30
)

// ActivitySource yields presence snapshots.
type ActivitySource interface {
	Fetch(ctx context.Context) ([]Activity, error)
}

// Playback is the playback capability the synchronizer drives.
type Playback interface {
	Duration(ctx context.Context, trackURI string) (int64, error)
	StartPlayback(ctx context.Context, trackURI string, offsetMS int64) error
}

// Config holds synchronizer configuration
type Config struct {
	FriendURI     string        // Friend whose playback is mirrored
	TickInterval  time.Duration // Sleep between ticks
	ErrorBackoff  time.Duration // Sleep after a failed poll
	IdleThreshold int           // Idle ticks before stopping
	Clock         clockwork.Clock
}

// SyncState is what the synchronizer remembers between ticks.
type SyncState struct {
	LastSeenMS     int64 // Timestamp of the last mirrored activity
	HasLastSeen    bool  // False until the first play
	SongDurationMS int64 // Duration of the mirrored song, 0 if it had already ended, -1 before the first play
	IdleTicks      int   // Consecutive ticks past the end of the song
}

// Synchronizer mirrors one friend's playback. It is owned by a single
// goroutine and is not safe for concurrent use.
type Synchronizer struct {
	cfg      Config
	source   ActivitySource
	playback Playback
	clock    clockwork.Clock
	logger   zerolog.Logger
	state    SyncState
}

// NewSynchronizer creates a Synchronizer in its initial state.
func NewSynchronizer(cfg Config, source ActivitySource, playback Playback, logger zerolog.Logger) *Synchronizer {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	logger = logger.With().
		Str("component", "synchronizer").
		Str("friend", cfg.FriendURI).
		Logger()

	return &Synchronizer{
		cfg:      cfg,
		source:   source,
		playback: playback,
		clock:    cfg.Clock,
		logger:   logger,
		state:    SyncState{SongDurationMS: -1},
	}
}

// State returns a copy of the current state
func (s *Synchronizer) State() SyncState {
	return s.state
}

// Run ticks until a terminal status or until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) Status {
	s.logger.Info().
		Dur("interval", s.cfg.TickInterval).
		Int("idle_threshold", s.cfg.IdleThreshold).
		Msg("Starting synchronizer")

	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Synchronizer cancelled")
			return Cancelled
		}

		status, wait := s.Tick(ctx)

		// A playback call aborted by cancellation is not a remote failure
		if ctx.Err() != nil {
			s.logger.Info().Msg("Synchronizer cancelled")
			return Cancelled
		}
		if status.Terminal() {
			return status
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Synchronizer cancelled")
			return Cancelled
		case <-s.clock.After(wait):
		}
	}
}

// Tick performs one poll and decision. It returns the resulting status and
// how long to wait before the next tick.
func (s *Synchronizer) Tick(ctx context.Context) (Status, time.Duration) {
	activities, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Dur("backoff", s.cfg.ErrorBackoff).
			Msg("Error fetching activity")
		return Running, s.cfg.ErrorBackoff
	}

	record, ok := findActivity(activities, s.cfg.FriendURI)
	if !ok {
		s.logger.Debug().Msg("Friend not in presence snapshot")
		return Running, s.cfg.TickInterval
	}

	offset := s.clock.Now().UnixMilli() - record.TimestampMS
	if offset < 0 {
		// Friend's clock runs ahead of ours; start from the beginning
		offset = 0
	}

	switch {
	case !s.state.HasLastSeen || record.TimestampMS != s.state.LastSeenMS:
		if err := s.play(ctx, record, offset); err != nil {
			s.logger.Error().
				Err(err).
				Str("track", record.TrackName).
				Str("uri", record.TrackURI).
				Msg("Failed to start playback, stopping")
			return StoppedError, 0
		}

	case offset > s.state.SongDurationMS:
		s.state.IdleTicks++
		s.logger.Debug().
			Int("idle_ticks", s.state.IdleTicks).
			Int64("offset_ms", offset).
			Msg("Friend idle")

		if s.state.IdleTicks >= s.cfg.IdleThreshold {
			s.logger.Info().
				Int("idle_ticks", s.state.IdleTicks).
				Msg("Friend stopped listening, stopping")
			return StoppedIdle, 0
		}
	}

	return Running, s.cfg.TickInterval
}

// play starts record's track at offset and resets the song context.
// State is only touched once playback has started.
func (s *Synchronizer) play(ctx context.Context, record Activity, offset int64) error {
	duration, err := s.playback.Duration(ctx, record.TrackURI)
	if err != nil {
		return err
	}

	if err := s.playback.StartPlayback(ctx, record.TrackURI, offset); err != nil {
		return err
	}

	if offset >= duration {
		duration = 0
	}

	s.state.SongDurationMS = duration
	s.state.IdleTicks = 0
	s.state.LastSeenMS = record.TimestampMS
	s.state.HasLastSeen = true

	s.logger.Info().
		Str("track", record.TrackName).
		Str("artist", record.ArtistName).
		Int64("offset_ms", offset).
		Int64("duration_ms", duration).
		Msg("Now following track")

	return nil
}

// findActivity returns the record for userURI.
func findActivity(activities []Activity, userURI string) (Activity, bool) {
	for _, a := range activities {
		if a.UserURI == userURI {
			return a, true
		}
	}
	return Activity{}, false
}
