// Package config loads vaultctl's configuration: built-in defaults,
// overridden by an optional YAML file, overridden by environment
// variables. The configuration never contains passwords.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultDirName is the per-user state directory under $HOME.
const DefaultDirName = ".mediasafe"

// Config holds all tunables of the vault manager and its CLI.
type Config struct {
	ManifestPath    string `yaml:"manifest_path" env:"VAULTCTL_MANIFEST"`
	AuditDir        string `yaml:"audit_dir" env:"VAULTCTL_AUDIT_DIR"`
	HdiutilPath     string `yaml:"hdiutil_path" env:"VAULTCTL_HDIUTIL"`
	DiskutilPath    string `yaml:"diskutil_path" env:"VAULTCTL_DISKUTIL"`
	MountPrefix     string `yaml:"mount_prefix" env:"VAULTCTL_MOUNT_PREFIX"`
	RemovablePrefix string `yaml:"removable_prefix" env:"VAULTCTL_REMOVABLE_PREFIX"`
	LogLevel        string `yaml:"log_level" env:"VAULTCTL_LOG_LEVEL"`
}

// Default returns the built-in configuration rooted at the user's home
// directory.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, DefaultDirName)
	return Config{
		ManifestPath: filepath.Join(dir, "manifest.json"),
		AuditDir:     filepath.Join(dir, "audit"),
		LogLevel:     "info",
	}, nil
}

// DefaultFilePath is where Load looks for a config file when none is
// given explicitly.
func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "config.yaml"), nil
}

// Load assembles the configuration. path names an explicit config file;
// when empty, the default location is used if it exists. Environment
// variables take precedence over the file, the file over defaults.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	explicit := path != ""
	if !explicit {
		if path, err = DefaultFilePath(); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; defaults apply.
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
