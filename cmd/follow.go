package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfmyers9/tagalong/internal/auth"
	"github.com/jfmyers9/tagalong/internal/listen"
	"github.com/jfmyers9/tagalong/internal/player"
	"github.com/spf13/cobra"
)

// cacheMaxAge is how long a cached track duration is trusted
const cacheMaxAge = 30 * 24 * time.Hour

var (
	followDeviceID string
	followNoCache  bool
)

// followCmd represents the follow command
var followCmd = &cobra.Command{
	Use:   "follow <friend-uri>",
	Short: "Play along with a friend",
	Long: `Follow a friend's listening and mirror it on your own device.

The friend is identified by their user URI (spotify:user:<id>), as shown
by 'tagalong friends'. Whenever the friend starts a new track, the same
track is started on your device at the friend's current position.

Following stops when:
- The friend has been idle past the end of their last track for a while
- Spotify rejects a playback command (no active device, not Premium, ...)
- SIGINT/SIGTERM is received

The command exits non-zero if playback was rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().StringVar(&followDeviceID, "device", "", "Device ID to play on (default: active device)")
	followCmd.Flags().BoolVar(&followNoCache, "no-cache", false, "Do not use the track metadata cache")
}

func runFollow(cmd *cobra.Command, args []string) error {
	friendURI := args[0]
	logger := setupLogger(logFile, logLevel)

	svc, err := loadServices(logger, true)
	if err != nil {
		return err
	}

	deviceID := svc.cfg.Player.DeviceID
	if followDeviceID != "" {
		deviceID = followDeviceID
	}

	var cache *player.Cache
	if !followNoCache {
		cache, err = player.NewCache(svc.cfg.Player.CachePath)
		if err != nil {
			return fmt.Errorf("failed to open track cache: %w", err)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close track cache")
			}
		}()

		// Durations rarely change, but drop rows from relinked or removed tracks
		if deleted, err := cache.Cleanup(cmd.Context(), cacheMaxAge); err != nil {
			logger.Warn().Err(err).Msg("Failed to clean up track cache")
		} else if deleted > 0 {
			logger.Debug().Int64("deleted", deleted).Msg("Cleaned up track cache")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle first signal gracefully, second signal forces exit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Info().Msg("Shutdown signal received, stopping")
		cancel()

		<-sigChan
		logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	session, err := svc.openSession(ctx)
	if err != nil {
		return err
	}

	build := func(runCtx context.Context, snapshot *auth.Session, friend string) (*listen.Synchronizer, error) {
		client := svc.spotifyClient(runCtx, snapshot)
		poller := listen.NewPoller(client, logger)
		p := player.New(client, cache, deviceID, logger)

		return listen.NewSynchronizer(listen.Config{
			FriendURI:     friend,
			TickInterval:  svc.cfg.Listen.TickInterval,
			ErrorBackoff:  svc.cfg.Listen.ErrorBackoff,
			IdleThreshold: svc.cfg.Listen.IdleThreshold,
		}, poller, p, logger), nil
	}

	supervisor := listen.NewSupervisor(session, build, logger)

	logger.Info().
		Str("version", version).
		Str("friend", friendURI).
		Msg("Starting tagalong")

	handle, err := supervisor.Start(ctx, friendURI)
	if err != nil {
		return err
	}

	<-handle.Done()

	status := handle.Status()
	logger.Info().Str("status", status.String()).Msg("Stopped following")

	if status == listen.StoppedError {
		return fmt.Errorf("stopped following %s: playback failed", friendURI)
	}
	return nil
}
