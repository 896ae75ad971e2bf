// Command ledgerctl runs administrative tasks against the ledger database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/punchamoorthee/creditledger/internal/config"
	"github.com/punchamoorthee/creditledger/internal/logger"
	"github.com/punchamoorthee/creditledger/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Administer the credit ledger",
	Long: `ledgerctl backs up, restores and audits the credit ledger.
Connection settings come from the same environment as the API server
(DB_DRIVER, DB_SOURCE, or CONFIG_FILE).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore loads configuration, sets up logging and connects to the database.
// It also returns the configured sales timezone.
func openStore(ctx context.Context) (store.Store, *time.Location, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.Env); err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(ctx, cfg.DBDriver, cfg.DBSource)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, loc, nil
}
