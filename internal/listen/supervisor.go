package listen

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jfmyers9/tagalong/internal/auth"
	"github.com/rs/zerolog"
)

// BuildFunc assembles a Synchronizer for friendURI on top of a session
// snapshot. ctx is the run context; token refreshes made through the
// snapshot are bound to it.
type BuildFunc func(ctx context.Context, session *auth.Session, friendURI string) (*Synchronizer, error)

// Supervisor runs at most one Synchronizer at a time.
type Supervisor struct {
	session *auth.Session
	build   BuildFunc
	logger  zerolog.Logger

	mu      sync.Mutex
	current *Handle
}

// Handle controls one running Synchronizer.
type Handle struct {
	ID        uuid.UUID
	FriendURI string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
}

// NewSupervisor creates a Supervisor that snapshots session for every run.
func NewSupervisor(session *auth.Session, build BuildFunc, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		session: session,
		build:   build,
		logger:  logger.With().Str("component", "supervisor").Logger(),
	}
}

// Start stops any running Synchronizer, waits for it to exit, and starts a
// new one following friendURI. The new run ends when ctx is cancelled, when
// its Handle is stopped, or when it reaches a terminal status.
func (s *Supervisor) Start(ctx context.Context, friendURI string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	synchronizer, err := s.build(runCtx, s.session.Snapshot(), friendURI)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build synchronizer: %w", err)
	}

	h := &Handle{
		ID:        uuid.New(),
		FriendURI: friendURI,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	logger := s.logger.With().
		Str("run_id", h.ID.String()).
		Str("friend", friendURI).
		Logger()

	go func() {
		defer close(h.done)
		defer cancel()

		status := synchronizer.Run(runCtx)
		h.setStatus(status)

		logger.Info().
			Str("status", status.String()).
			Msg("Synchronizer exited")
	}()

	logger.Info().Msg("Synchronizer started")

	s.current = h
	return h, nil
}

// Stop stops the running Synchronizer, if any, and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Stop()
		s.current = nil
	}
}

// Current returns the most recently started handle, or nil.
func (s *Supervisor) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stop cancels the run and waits for it to exit. Safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the run has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Status returns Running until the run exits, then its final status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Handle) setStatus(status Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}
