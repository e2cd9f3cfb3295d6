package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediasafe/vaultctl/internal/keyring"
)

func init() {
	rootCmd.AddCommand(forgetCmd)
}

var forgetCmd = &cobra.Command{
	Use:   "forget <vault>",
	Short: "Remove a vault from the manifest",
	Long: `Remove a vault's registration from the manifest. The encrypted
container on disk is untouched; re-register it later by adding it
back to the manifest. Any password stored in the OS keyring for the
vault is deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveVault(args[0])
		if err != nil {
			return err
		}
		if err := mgr.RemoveVault(cfg.ID); err != nil {
			return err
		}
		if keyring.HasPassword(cfg.ID) {
			if err := keyring.DeletePassword(cfg.ID); err != nil {
				logger.Warn().Err(err).Str("vault_id", cfg.ID).Msg("could not remove keyring entry")
			}
		}
		fmt.Printf("forgot: %s (container kept at %s)\n", cfg.Name, cfg.BundlePath)
		return nil
	},
}
