package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InViSiB0B/TreasureGoblin/internal/syncer"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain path", "/var/lib/goblin.db", "/var/lib/goblin.db"},
		{"tilde prefix", "~/goblin.db", filepath.Join(home, "goblin.db")},
		{"bare tilde", "~", home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}

	t.Run("env var", func(t *testing.T) {
		t.Setenv("GOBLIN_TEST_DIR", "/data")
		assert.Equal(t, "/data/goblin.db", ExpandPath("$GOBLIN_TEST_DIR/goblin.db"))
	})
}

func TestLoadSyncConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadSyncConfig()
	require.NoError(t, err)
	assert.Equal(t, syncer.FrequencyManual, cfg.Frequency)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadSyncConfig_FromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("sync.frequency", "weekly")
	viper.Set("sync.retry_attempts", 5)
	viper.Set("sync.retry_initial_delay", "2s")

	cfg, err := LoadSyncConfig()
	require.NoError(t, err)
	assert.Equal(t, syncer.FrequencyWeekly, cfg.Frequency)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
}

func TestLoadSyncConfig_BadFrequency(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("sync.frequency", "fortnightly")
	_, err := LoadSyncConfig()
	require.Error(t, err)
}

func TestLoadBackupDirectory(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Run("default under home", func(t *testing.T) {
		dir, err := LoadBackupDirectory()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".local", "share", "goblin", "backups"), dir)
	})

	t.Run("configured path is expanded", func(t *testing.T) {
		viper.Set("backup.directory", "~/goblin-backups")
		dir, err := LoadBackupDirectory()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "goblin-backups"), dir)
	})
}

func TestLoadPassphrase(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Run("missing everywhere", func(t *testing.T) {
		_, err := LoadPassphrase()
		require.Error(t, err)
	})

	t.Run("from config", func(t *testing.T) {
		viper.Set("backup.passphrase", "from-config")
		got, err := LoadPassphrase()
		require.NoError(t, err)
		assert.Equal(t, "from-config", got)
	})

	t.Run("env wins", func(t *testing.T) {
		viper.Set("backup.passphrase", "from-config")
		t.Setenv("GOBLIN_PASSPHRASE", "from-env")
		got, err := LoadPassphrase()
		require.NoError(t, err)
		assert.Equal(t, "from-env", got)
	})
}
