package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jfmyers9/tagalong/internal/config"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store your Spotify sp_dc cookie",
	Long: `Store the sp_dc cookie that tagalong uses to authenticate.

This command will guide you through the setup:
1. Log in at https://open.spotify.com in your browser
2. Open the developer tools and copy the value of the sp_dc cookie
3. Paste it here; tagalong checks that it works and saves it to your config file

The cookie is long-lived but is invalidated when you log out of the browser.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Load existing config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Spotify Authentication")
	fmt.Println("======================")
	fmt.Println()

	if cfg.Cookie != "" {
		fmt.Printf("Found an existing sp_dc cookie (%s).\n", redact(cfg.Cookie))
		fmt.Print("\nReplace it? [y/N]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "n"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Keeping existing cookie.")
			return nil
		}
	}

	fmt.Print("Paste your sp_dc cookie: ")
	cookie, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	cfg.Cookie = strings.TrimSpace(cookie)

	if cfg.Cookie == "" {
		return fmt.Errorf("sp_dc cookie is required")
	}

	// Check the cookie before saving it
	fmt.Println("\nRequesting an access token...")

	logger := setupLogger(logFile, logLevel)
	svc, err := loadServices(logger, false)
	if err != nil {
		return err
	}
	svc.cfg.Cookie = cfg.Cookie

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	session, err := svc.openSession(ctx)
	if err != nil {
		return err
	}

	user, err := svc.spotifyClient(ctx, session).Me(ctx)
	if err != nil {
		return fmt.Errorf("token was issued but the profile lookup failed: %w", err)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath := config.GetConfigDir()
	fmt.Printf("\n✓ Authenticated as %s (%s)\n", user.DisplayName, user.Product)
	fmt.Printf("✓ Cookie saved to %s/config.yaml\n", configPath)
	fmt.Println("\nRun 'tagalong friends' to see who you can follow.")

	if user.Product != "premium" {
		fmt.Println("\nNote: playback control requires Spotify Premium.")
	}

	return nil
}

// redact shows only the edges of a secret
func redact(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
