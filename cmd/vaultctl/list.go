package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered vaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		vaults := mgr.Vaults()
		if len(vaults) == 0 {
			fmt.Println("No vaults registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tDRIVE\tENABLED\tBUNDLE")
		for _, v := range vaults {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", v.Name, v.ID, v.DriveType, v.IsEnabled, v.BundlePath)
		}
		return w.Flush()
	},
}
