// Package commands wires the ledgerctl CLI: small operational commands over
// a ledger database for migrations, bookkeeping, close-of-books, and reports.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/store/postgres"
	"github.com/bookline/ledger/store/sqlite"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate a bookline expense ledger database",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("db", "", "path to a SQLite database file")
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL connection string")

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newRecordCommand())
	rootCmd.AddCommand(newReverseCommand())
	rootCmd.AddCommand(newLockPeriodCommand())
	rootCmd.AddCommand(newReportCommand())

	return rootCmd
}

// openStore opens the store selected by the --db / --dsn flags.
func openStore(cmd *cobra.Command) (store.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	dsn, _ := cmd.Flags().GetString("dsn")

	switch {
	case dbPath != "" && dsn != "":
		return nil, fmt.Errorf("--db and --dsn are mutually exclusive")
	case dbPath != "":
		return sqlite.New(dbPath)
	case dsn != "":
		return postgres.New(cmd.Context(), dsn)
	default:
		return nil, fmt.Errorf("one of --db or --dsn is required")
	}
}

// withLedger opens the store, starts a ledger around it, runs fn, and shuts
// everything down.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, l *ledger.Ledger) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}

	l := ledger.New(s)
	ctx := cmd.Context()
	if err := l.Start(ctx); err != nil {
		s.Close()
		return err
	}
	defer l.Stop()

	return fn(ctx, l)
}
