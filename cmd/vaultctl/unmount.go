package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unmountAll   bool
	unmountForce bool
)

func init() {
	rootCmd.AddCommand(unmountCmd)
	unmountCmd.Flags().BoolVar(&unmountAll, "all", false, "Unmount every mounted vault (best effort)")
	unmountCmd.Flags().BoolVarP(&unmountForce, "force", "f", false, "Forcibly eject busy volumes")
}

var unmountCmd = &cobra.Command{
	Use:   "unmount [vault]",
	Short: "Unmount a vault by id or name",
	Long: `Unmount a vault's volume. Vaults not currently mounted are a no-op.
With --all, every tracked mount is swept best-effort: failures are
logged per vault and do not stop the sweep.

Vaults mounted by a previous process instance are rediscovered first,
so unmount works across restarts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The mount table is empty after a restart; resync before
		// deciding anything is unmounted.
		if err := mgr.ResyncMounts(cmd.Context()); err != nil {
			logger.Warn().Err(err).Msg("could not resync mount state")
		}

		if unmountAll {
			mgr.UnmountAllVaults(cmd.Context(), unmountForce)
			return nil
		}

		if len(args) != 1 {
			return errors.New("vault id or name required (or --all)")
		}
		cfg, err := resolveVault(args[0])
		if err != nil {
			return err
		}
		if err := mgr.UnmountVault(cmd.Context(), cfg.ID, unmountForce); err != nil {
			return err
		}
		fmt.Printf("unmounted: %s\n", cfg.Name)
		return nil
	},
}
