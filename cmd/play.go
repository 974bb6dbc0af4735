package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/tagalong/internal/player"
	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play <track-uri>",
	Short: "Start a track on your device",
	Long: `Start a single track on your device, optionally from a position.

This issues the same playback command 'tagalong follow' uses, which makes
it a quick way to check that a device is reachable before following.

Example:
  tagalong play spotify:track:4uLU6hMCjMI75M1A2tKUQC --at 1m30s`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Duration("at", 0, "Position to start from")
	playCmd.Flags().String("device", "", "Device ID to play on (default: active device)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	trackURI := args[0]
	if _, err := spotify.TrackID(trackURI); err != nil {
		return err
	}

	at, _ := cmd.Flags().GetDuration("at")
	if at < 0 {
		return fmt.Errorf("invalid position: %s", at)
	}

	logger := setupLogger(logFile, logLevel)

	svc, err := loadServices(logger, true)
	if err != nil {
		return err
	}

	deviceID := svc.cfg.Player.DeviceID
	if flag, _ := cmd.Flags().GetString("device"); flag != "" {
		deviceID = flag
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	session, err := svc.openSession(ctx)
	if err != nil {
		return err
	}

	p := player.New(svc.spotifyClient(ctx, session), nil, deviceID, logger)

	duration, err := p.Duration(ctx, trackURI)
	if err != nil {
		return err
	}
	if at.Milliseconds() >= duration {
		return fmt.Errorf("position %s is past the end of the track", at)
	}

	if err := p.StartPlayback(ctx, trackURI, at.Milliseconds()); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	return nil
}
