package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediasafe/vaultctl/pkg/audit"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log HMAC chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := audit.NewLogger(cfg.AuditDir)
		if err != nil {
			return err
		}
		n, err := log.VerifyChain()
		if err != nil {
			return fmt.Errorf("verification failed after %d events: %w", n, err)
		}
		fmt.Printf("audit chain OK: %d events verified\n", n)
		return nil
	},
}
