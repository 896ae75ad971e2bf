package main

import (
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/creditledger/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().Bool("json", false, "Print the report as JSON")
	auditCmd.Flags().Bool("fail", false, "Exit non-zero when drift is found")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report clients whose cached debit differs from their unpaid purchases",
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	failOnDrift, _ := cmd.Flags().GetBool("fail")

	ctx := cmd.Context()
	s, loc, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := service.NewLedgerService(s, loc).Audit(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Checked %d clients, %d with drift\n", report.Clients, len(report.Drifts))
		for _, d := range report.Drifts {
			fmt.Fprintf(out, "  #%-6d %-30s cached=%-12s unpaid=%-12s delta=%s\n",
				d.ClientID, d.Name, d.Cached.StringFixed(2), d.Unpaid.StringFixed(2), d.Delta.StringFixed(2))
		}
	}

	if failOnDrift && len(report.Drifts) > 0 {
		return fmt.Errorf("debit drift found on %d clients", len(report.Drifts))
	}
	return nil
}
