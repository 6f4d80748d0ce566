package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/report"
)

func newReportCommand() *cobra.Command {
	var (
		tenant   string
		from     string
		to       string
		category string
		vendor   string
		groupBy  string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate expense totals from committed history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := report.Filter{
				Category: category,
				Vendor:   vendor,
				GroupBy:  report.GroupBy(groupBy),
			}
			var err error
			if from != "" {
				if f.Start, err = time.Parse(time.DateOnly, from); err != nil {
					return fmt.Errorf("parsing --from: %w", err)
				}
			}
			if to != "" {
				if f.End, err = time.Parse(time.DateOnly, to); err != nil {
					return fmt.Errorf("parsing --to: %w", err)
				}
			}

			return withLedger(cmd, func(ctx context.Context, l *ledger.Ledger) error {
				res, err := l.Report(ctx, tenant, f)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, row := range res.Rows {
					fmt.Fprintf(w, "%s\t%s %s\t%d txns\n", row.Group, row.TotalMajor.StringFixed(2), row.Currency, row.Count)
				}
				fmt.Fprintf(w, "total\t%s %s\t%d txns\n", res.TotalMajor.StringFixed(2), res.Currency, res.Count)
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant identifier (required)")
	_ = cmd.MarkFlagRequired("tenant")
	cmd.Flags().StringVar(&from, "from", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "end date, YYYY-MM-DD")
	cmd.Flags().StringVar(&category, "category", "", "restrict to one expense category")
	cmd.Flags().StringVar(&vendor, "vendor", "", "restrict to one vendor")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "group rows by: month, category, or vendor")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")

	return cmd
}
