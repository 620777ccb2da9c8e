package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Database.BusyTimeoutMS)
	require.Equal(t, 0.85, cfg.Duplicates.Threshold)
	require.Equal(t, "127.0.0.1:8420", cfg.Server.ListenAddr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.yaml")
	content := []byte("database:\n  lock_timeout_ms: 1000\nduplicates:\n  threshold: 0.9\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.Database.LockTimeoutMS)
	require.Equal(t, 0.9, cfg.Duplicates.Threshold)
	// Untouched keys keep their defaults.
	require.Equal(t, 5000, cfg.Database.BusyTimeoutMS)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOARD_SERVER_LISTEN_ADDR", "0.0.0.0:9000")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
}

func TestValidate_RejectsBadLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	require.Error(t, Validate(cfg))
}
