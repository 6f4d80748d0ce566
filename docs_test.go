package ledger_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/report"
	"github.com/bookline/ledger/store/memory"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		store := memory.New()

		l := ledger.New(store,
			ledger.WithLogger(slog.Default()),
		)

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		// Record an expense
		txnID, err := l.CreateExpenseTransaction(ctx, ledger.CreateExpenseInput{
			TenantID:       "org_123",
			OccurredAt:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			Description:    "Team lunch",
			AmountMinor:    12550, // $125.50
			Category:       "Food",
			Vendor:         "Good Eats",
			IdempotencyKey: "exp-20240110-001",
			Actor:          "user_9",
		})
		if err != nil {
			t.Fatal(err)
		}

		// Retried call returns the same transaction unchanged
		again, err := l.CreateExpenseTransaction(ctx, ledger.CreateExpenseInput{
			TenantID:       "org_123",
			OccurredAt:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
			Description:    "Team lunch",
			AmountMinor:    12550,
			Category:       "Food",
			Vendor:         "Good Eats",
			IdempotencyKey: "exp-20240110-001",
			Actor:          "user_9",
		})
		if err != nil {
			t.Fatal(err)
		}
		if again.String() != txnID.String() {
			t.Fatalf("expected idempotent retry to return %s, got %s", txnID, again)
		}

		// Correct the mistake with a reversal
		revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
			TenantID:      "org_123",
			TransactionID: txnID,
			Reason:        "duplicate entry",
			Actor:         "user_9",
		})
		if err != nil {
			t.Fatal(err)
		}
		if revID.IsNil() {
			t.Fatal("expected a reversal transaction id")
		}

		// The reversed expense no longer contributes to reports
		res, err := l.Report(ctx, "org_123", report.Filter{GroupBy: report.GroupCategory})
		if err != nil {
			t.Fatal(err)
		}
		if res.TotalMinor != 0 {
			t.Fatalf("expected zero total after reversal, got %d", res.TotalMinor)
		}

		// Close the books for January
		if err := l.LockPeriod(ctx, "org_123", "2024-01", "finance-bot"); err != nil {
			t.Fatal(err)
		}
	})
}
