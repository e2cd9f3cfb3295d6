package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, DefaultDirName, "manifest.json"), cfg.ManifestPath)
	assert.Equal(t, filepath.Join(home, DefaultDirName, "audit"), cfg.AuditDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.HdiutilPath)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `manifest_path: /tmp/vaults/manifest.json
mount_prefix: Custom-
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vaults/manifest.json", cfg.ManifestPath)
	assert.Equal(t, "Custom-", cfg.MountPrefix)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0600))

	t.Setenv("VAULTCTL_LOG_LEVEL", "warn")
	t.Setenv("VAULTCTL_HDIUTIL", "/opt/bin/hdiutil")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/opt/bin/hdiutil", cfg.HdiutilPath)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mount_prefix: [\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}
