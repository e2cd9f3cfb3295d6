// Package main provides the vaultctl CLI, the operator surface of the
// MediaSafe encrypted-vault manager.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
