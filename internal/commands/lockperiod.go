package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/periodlock"
)

func newLockPeriodCommand() *cobra.Command {
	var (
		tenant string
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "lock-period <period>",
		Short: "Lock a calendar month (YYYY-MM) against further writes",
		Long: `Lock a calendar month against further writes.

Locking is idempotent and permanent: re-locking a locked period succeeds
without changes, and there is no unlock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := periodlock.ParsePeriod(args[0])
			if err != nil {
				return err
			}

			return withLedger(cmd, func(ctx context.Context, l *ledger.Ledger) error {
				if err := l.LockPeriod(ctx, tenant, period, actor); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s locked\n", period)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant identifier (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&actor, "actor", "ledgerctl", "acting user recorded on the lock")

	return cmd
}
