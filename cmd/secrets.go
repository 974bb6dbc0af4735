package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/tagalong/internal/auth"
	"github.com/spf13/cobra"
)

// secretsCmd represents the secrets command
var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Show the TOTP secret versions in use",
	Long: `Fetch the published TOTP secret set and print its versions, the version
used for code generation, and the code for the current server time.

Useful when token requests start failing with totpVerExpired.`,
	RunE: runSecrets,
}

func init() {
	rootCmd.AddCommand(secretsCmd)
}

func runSecrets(cmd *cobra.Command, args []string) error {
	logger := setupLogger(logFile, logLevel)

	svc, err := loadServices(logger, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := svc.secrets.Refresh(ctx); err != nil {
		return err
	}

	current, err := svc.secrets.CurrentVersion()
	if err != nil {
		return err
	}

	serverTime, err := svc.clock.Fetch(ctx)
	if err != nil {
		return err
	}

	code, _, err := auth.GenerateTOTP(serverTime, svc.secrets.Set())
	if err != nil {
		return err
	}

	fmt.Printf("Versions:    %v\n", svc.secrets.Set().Versions())
	fmt.Printf("Current:     %d\n", current)
	fmt.Printf("Server time: %s\n", time.Unix(serverTime, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Code:        %s\n", code)

	return nil
}
