package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show the current access token status",
	Long: `Obtain an access token from the sp_dc cookie and show its client ID
and expiry. The token itself is redacted unless --show is given.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Bool("refresh", false, "Force a second refresh after the initial one")
	tokenCmd.Flags().Bool("show", false, "Print the full token")
}

func runToken(cmd *cobra.Command, args []string) error {
	logger := setupLogger(logFile, logLevel)

	svc, err := loadServices(logger, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	session, err := svc.openSession(ctx)
	if err != nil {
		return err
	}

	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		if err := session.Refresh(ctx); err != nil {
			return err
		}
	}

	status := session.Status()

	token := redact(status.Token)
	if show, _ := cmd.Flags().GetBool("show"); show {
		token = status.Token
	}

	fmt.Printf("Token:     %s\n", token)
	fmt.Printf("Client ID: %s\n", status.ClientID)
	fmt.Printf("Expires:   %s (in %s)\n",
		status.Expiration().Local().Format(time.RFC3339),
		time.Until(status.Expiration()).Round(time.Second))

	return nil
}
