package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mediasafe/vaultctl/pkg/vault"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mount state of every registered vault",
	Long: `Show each registered vault with its live mount state. Mount state is
re-synchronized against the OS first, so vaults mounted by a previous
session (or out of band) are reported correctly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mgr.ResyncMounts(cmd.Context()); err != nil {
			logger.Warn().Err(err).Msg("could not resync mount state")
		}

		vaults := mgr.Vaults()
		if len(vaults) == 0 {
			fmt.Println("No vaults registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDRIVE\tBUNDLE\tSTATE")
		for _, v := range vaults {
			state := "unmounted"
			if path, ok := mgr.MountPath(v.ID); ok {
				state = "mounted at " + path
			}

			bundle := "present"
			if _, err := os.Stat(v.BundlePath); err != nil {
				if v.DriveType == vault.DriveTypeExternal {
					bundle = "disconnected"
				} else {
					bundle = "missing"
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, v.DriveType, bundle, state)
		}
		return w.Flush()
	},
}
