package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	for _, cmd := range []*cobra.Command{mountCmd, unmountCmd, rekeyCmd, compactCmd, forgetCmd} {
		cmd.ValidArgsFunction = completeVaultNames
	}
}

// completeVaultNames offers the names of registered vaults. Reading the
// manifest never touches a password, so completion is always safe.
func completeVaultNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || mgr == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, v := range mgr.Vaults() {
		if strings.HasPrefix(v.Name, toComplete) {
			names = append(names, v.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
