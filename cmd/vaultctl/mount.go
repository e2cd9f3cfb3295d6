package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var mountAll bool

func init() {
	rootCmd.AddCommand(mountCmd)
	mountCmd.Flags().BoolVar(&mountAll, "all", false, "Mount every enabled vault")
}

var mountCmd = &cobra.Command{
	Use:   "mount [vault]",
	Short: "Mount a vault by id or name",
	Long: `Mount a vault's container and print the OS-assigned mount path.
Mounting an already-mounted vault is idempotent and prints the same
path again.

With --all, every enabled vault is mounted with one shared password;
disconnected external vaults are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if mountAll {
			password, err := passwordFor("", "Enter password: ")
			if err != nil {
				return err
			}
			mounted, err := mgr.MountAllEnabled(cmd.Context(), password)
			for id, path := range mounted {
				if cfg, ok := mgr.VaultByID(id); ok {
					fmt.Printf("mounted: %s at %s\n", cfg.Name, path)
				}
			}
			return err
		}

		if len(args) != 1 {
			return errors.New("vault id or name required (or --all)")
		}
		cfg, err := resolveVault(args[0])
		if err != nil {
			return err
		}
		password, err := passwordFor(cfg.ID, fmt.Sprintf("Enter password for %q: ", cfg.Name))
		if err != nil {
			return err
		}
		path, err := mgr.MountVault(cmd.Context(), cfg.ID, password)
		if err != nil {
			return err
		}
		rememberPassword(cfg.ID, password)
		fmt.Println(path)
		return nil
	},
}
