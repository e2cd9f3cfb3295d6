package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediasafe/vaultctl/internal/config"
	"github.com/mediasafe/vaultctl/pkg/audit"
	"github.com/mediasafe/vaultctl/pkg/hdiutil"
	"github.com/mediasafe/vaultctl/pkg/vault"
)

var (
	cfgFile     string
	useKeychain bool

	cfg    config.Config
	logger zerolog.Logger
	tool   *hdiutil.Client
	mgr    *vault.Manager
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "vaultctl manages the encrypted vaults backing a MediaSafe library",
	Long: `vaultctl creates, mounts, unmounts, re-keys, and compacts the
password-encrypted storage containers (vaults) that back a MediaSafe
media library. Encryption is delegated to the platform disk-image
utility; passwords are fed to it over stdin and never persisted.`,
	SilenceUsage: true,
	// PersistentPreRunE wires configuration, logging, the tool adapter,
	// and the vault manager before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		tool = hdiutil.New(
			hdiutil.WithBinary(cfg.HdiutilPath),
			hdiutil.WithDiskutilBinary(cfg.DiskutilPath),
		)

		auditLog, err := audit.NewLogger(cfg.AuditDir)
		if err != nil {
			// Audit trouble should not block vault operations.
			logger.Warn().Err(err).Msg("audit log unavailable")
			auditLog = nil
		}

		mgr, err = vault.New(cfg.ManifestPath, tool,
			vault.WithLogger(logger),
			vault.WithAudit(auditLog),
			vault.WithMountPrefix(cfg.MountPrefix),
			vault.WithRemovablePrefix(cfg.RemovablePrefix),
		)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.mediasafe/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&useKeychain, "keychain", false, "Use the OS keyring for vault passwords")
}

// resolveVault accepts a vault id or name and returns its configuration.
func resolveVault(arg string) (vault.VaultConfiguration, error) {
	if cfg, ok := mgr.VaultByID(arg); ok {
		return cfg, nil
	}
	if cfg, ok := mgr.VaultByName(arg); ok {
		return cfg, nil
	}
	return vault.VaultConfiguration{}, fmt.Errorf("no vault with id or name %q", arg)
}
