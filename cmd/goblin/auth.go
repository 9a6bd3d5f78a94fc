package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/InViSiB0B/TreasureGoblin/internal/remote"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
		Long:  `Authenticate with the Google Drive account used for encrypted backups.`,
	}

	cmd.AddCommand(authDriveCmd())

	return cmd
}

func authDriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Authenticate with Google Drive",
		Long: `Authenticate with Google Drive using OAuth2.

This command will:
1. Open your browser to authenticate with Google
2. Save the token for future use

You'll need to run this once before the first sync.`,
		RunE: runAuthDrive,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	return cmd
}

func runAuthDrive(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clientID := viper.GetString("drive.client_id")
	clientSecret := viper.GetString("drive.client_secret")

	// Override with flags if provided
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	// Check for environment variables as fallback
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_DRIVE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_DRIVE_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set drive.client_id and drive.client_secret in config or use --client-id and --client-secret flags")
	}

	// Determine token file location
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	tokenFile := filepath.Join(configDir, "goblin", "drive-token.json")

	slog.Info("Starting Google Drive authentication", "token_file", tokenFile)

	config := remote.OAuth2Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	}

	if _, err := remote.AuthenticateOAuth2Interactive(ctx, config); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	slog.Info("✅ Authentication successful!")
	slog.Info("☁️ Google Drive is now configured for backups.")
	slog.Info("Run 'goblin sync now' to upload your first backup.")

	return nil
}
