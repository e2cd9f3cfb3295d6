package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createName string
	createPath string
	createSize int64
)

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createName, "name", "", "Vault name (required)")
	createCmd.Flags().StringVar(&createPath, "path", "", "Absolute path for the container bundle (required)")
	createCmd.Flags().Int64Var(&createSize, "size", 0, "Maximum size in MB (default: 90% of available capacity, at least 50 GiB)")
	createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagRequired("path")
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and register a new encrypted vault",
	Long: `Create a new encrypted, growable container and register it in the
manifest. The container is sparse: the maximum size bounds growth
without pre-allocating disk space.

Examples:
  # Create with an automatic size
  vaultctl create --name "Summer 2024" --path ~/Vaults/summer.sparsebundle

  # Create a 100 GiB vault on an external drive
  vaultctl create --name Archive --path /Volumes/Backup/archive.sparsebundle --size 102400`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readNewPassword()
		if err != nil {
			return err
		}

		cfg, err := mgr.CreateVault(cmd.Context(), createName, createPath, password, createSize)
		if err != nil {
			return err
		}
		if err := mgr.AddVault(*cfg); err != nil {
			return err
		}
		rememberPassword(cfg.ID, password)

		fmt.Printf("Created vault %q (%s)\n", cfg.Name, cfg.ID)
		fmt.Printf("  bundle: %s\n", cfg.BundlePath)
		fmt.Printf("  drive:  %s\n", cfg.DriveType)
		return nil
	},
}
