package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookline/ledger"
)

func newRecordCommand() *cobra.Command {
	var (
		tenant      string
		date        string
		description string
		amount      int64
		category    string
		vendor      string
		key         string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an expense transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			occurredAt, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("parsing --date: %w", err)
			}

			return withLedger(cmd, func(ctx context.Context, l *ledger.Ledger) error {
				txnID, err := l.CreateExpenseTransaction(ctx, ledger.CreateExpenseInput{
					TenantID:       tenant,
					OccurredAt:     occurredAt,
					Description:    description,
					AmountMinor:    amount,
					Category:       category,
					Vendor:         vendor,
					IdempotencyKey: key,
					Actor:          actor,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), txnID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant identifier (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&date, "date", "", "occurrence date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("date")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor currency units (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (required)")
	_ = cmd.MarkFlagRequired("key")
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringVar(&category, "category", "", "expense category")
	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor name")
	cmd.Flags().StringVar(&actor, "actor", "ledgerctl", "acting user recorded on the transaction")

	return cmd
}
