package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rekeyAll bool

func init() {
	rootCmd.AddCommand(rekeyCmd)
	rekeyCmd.Flags().BoolVar(&rekeyAll, "all", false, "Re-key every vault whose bundle is present")
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey [vault]",
	Short: "Change a vault's password",
	Long: `Change the password of a vault's container in place. Rotation
operates on the container file itself: the vault must be unmounted
first. With --all, every registered vault whose bundle is currently
present is re-keyed sequentially with the same password pair.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPassword, err := readPassword("Enter current password: ")
		if err != nil {
			return err
		}
		newPassword, err := readNewPassword()
		if err != nil {
			return err
		}

		if rekeyAll {
			if err := mgr.ChangeAllPasswords(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			fmt.Println("All reachable vaults re-keyed.")
			return nil
		}

		if len(args) != 1 {
			return errors.New("vault id or name required (or --all)")
		}
		cfg, err := resolveVault(args[0])
		if err != nil {
			return err
		}
		if err := mgr.ChangePassword(cmd.Context(), cfg.BundlePath, oldPassword, newPassword); err != nil {
			return err
		}
		rememberPassword(cfg.ID, newPassword)
		fmt.Printf("re-keyed: %s\n", cfg.Name)
		return nil
	},
}
