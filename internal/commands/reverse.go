package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/id"
)

func newReverseCommand() *cobra.Command {
	var (
		tenant string
		reason string
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Reverse a transaction with a compensating entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txnID, err := id.ParseTransactionID(args[0])
			if err != nil {
				return err
			}

			return withLedger(cmd, func(ctx context.Context, l *ledger.Ledger) error {
				revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
					TenantID:      tenant,
					TransactionID: txnID,
					Reason:        reason,
					Actor:         actor,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), revID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant identifier (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&reason, "reason", "", "why the transaction is being reversed")
	cmd.Flags().StringVar(&actor, "actor", "ledgerctl", "acting user recorded on the reversal")

	return cmd
}
