// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/InViSiB0B/TreasureGoblin/internal/common"
	"github.com/InViSiB0B/TreasureGoblin/internal/remote"
	"github.com/InViSiB0B/TreasureGoblin/internal/service"
	"github.com/InViSiB0B/TreasureGoblin/internal/syncer"
)

// SyncConfig holds backup scheduling settings.
type SyncConfig struct {
	Frequency syncer.Frequency
	Retry     service.RetryOptions
}

// LoadSyncConfig loads sync settings from Viper. It follows this precedence:
// 1. Viper configuration (from config file or GOBLIN_ env vars)
// 2. Default values
func LoadSyncConfig() (*SyncConfig, error) {
	cfg := &SyncConfig{
		Frequency: syncer.FrequencyManual,
		Retry: service.RetryOptions{
			MaxAttempts:    3,
			InitialDelay:   time.Second,
			MaxDelay:       30 * time.Second,
			Multiplier:     2.0,
			AttemptTimeout: 2 * time.Minute,
		},
	}

	if v := viper.GetString("sync.frequency"); v != "" {
		freq, err := syncer.ParseFrequency(v)
		if err != nil {
			return nil, err
		}
		cfg.Frequency = freq
	}
	if v := viper.GetInt("sync.retry_attempts"); v > 0 {
		cfg.Retry.MaxAttempts = v
	}
	if v := viper.GetDuration("sync.retry_initial_delay"); v > 0 {
		cfg.Retry.InitialDelay = v
	}
	if v := viper.GetDuration("sync.attempt_timeout"); v > 0 {
		cfg.Retry.AttemptTimeout = v
	}

	return cfg, nil
}

// LoadDriveConfig loads Google Drive credentials from Viper and environment
// variables. Direct GOOGLE_DRIVE_* variables fill anything the config file
// leaves empty.
func LoadDriveConfig() (remote.OAuth2Config, string, error) {
	cfg := remote.OAuth2Config{
		ClientID:     viper.GetString("drive.client_id"),
		ClientSecret: viper.GetString("drive.client_secret"),
		TokenFile:    ExpandPath(viper.GetString("drive.token_file")),
	}
	folder := viper.GetString("drive.folder")

	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_DRIVE_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_DRIVE_CLIENT_SECRET")
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = ExpandPath("~/.config/goblin/drive-token.json")
	}
	if folder == "" {
		folder = "TreasureGoblin Backups"
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return cfg, "", fmt.Errorf("%w: drive.client_id and drive.client_secret are required for sync", common.ErrMissingConfig)
	}

	return cfg, folder, nil
}

// LoadBackupDirectory returns the directory local backup archives land in
// when a command is not given an explicit path.
func LoadBackupDirectory() (string, error) {
	if v := viper.GetString("backup.directory"); v != "" {
		return ExpandPath(v), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "goblin", "backups"), nil
}

// LoadPassphrase resolves the archive passphrase. The GOBLIN_PASSPHRASE
// environment variable wins over the config file so the passphrase can stay
// out of config files entirely.
func LoadPassphrase() (string, error) {
	if v := os.Getenv("GOBLIN_PASSPHRASE"); v != "" {
		return v, nil
	}
	if v := viper.GetString("backup.passphrase"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: set GOBLIN_PASSPHRASE or backup.passphrase", common.ErrMissingConfig)
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
