package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/store/memory"
	"github.com/bookline/ledger/transaction"
)

const testTenant = "org_test"

// newTestLedger returns a started ledger over a fresh in-memory store with a
// deterministic clock.
func newTestLedger(t *testing.T, now time.Time) *ledger.Ledger {
	t.Helper()
	l := ledger.New(memory.New(), ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func expenseInput(key string) ledger.CreateExpenseInput {
	return ledger.CreateExpenseInput{
		TenantID:       testTenant,
		OccurredAt:     time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		Description:    "Team lunch",
		AmountMinor:    12550,
		Category:       "Food",
		Vendor:         "Good Eats",
		IdempotencyKey: key,
		Actor:          "user_9",
	}
}

func TestCreateExpenseTransaction_BalancedPostings(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	txn, err := l.GetTransaction(ctx, testTenant, txnID)
	require.NoError(t, err)
	require.Len(t, txn.Postings, 2)
	assert.True(t, txn.Balanced())
	assert.Equal(t, int64(12550), txn.DebitTotal().Amount)
	assert.Equal(t, int64(12550), txn.CreditTotal().Amount)

	// DEBIT lands on the category's expense account, CREDIT on Cash.
	food, err := l.GetOrCreateExpenseAccount(ctx, testTenant, "Food")
	require.NoError(t, err)
	cash, err := l.GetCashAccount(ctx, testTenant)
	require.NoError(t, err)

	var debit, credit transaction.Posting
	for _, p := range txn.Postings {
		switch p.Direction {
		case transaction.Debit:
			debit = p
		case transaction.Credit:
			credit = p
		}
	}
	assert.Equal(t, food.ID.String(), debit.AccountID.String())
	assert.Equal(t, "Food", debit.Category)
	assert.Equal(t, cash.ID.String(), credit.AccountID.String())
}

func TestCreateExpenseTransaction_BootstrapsDefaultAccounts(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	_, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	cash, err := l.GetCashAccount(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, account.TypeAsset, cash.Type)
	assert.True(t, cash.System)

	uncat, err := l.Store().GetAccountByName(ctx, testTenant, account.UncategorizedName)
	require.NoError(t, err)
	assert.Equal(t, account.TypeExpense, uncat.Type)
	assert.True(t, uncat.System)
}

func TestCreateExpenseTransaction_EmptyCategoryUsesUncategorized(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	in := expenseInput("exp-001")
	in.Category = ""
	txnID, err := l.CreateExpenseTransaction(ctx, in)
	require.NoError(t, err)

	txn, err := l.GetTransaction(ctx, testTenant, txnID)
	require.NoError(t, err)

	uncat, err := l.Store().GetAccountByName(ctx, testTenant, account.UncategorizedName)
	require.NoError(t, err)
	for _, p := range txn.Postings {
		if p.Direction == transaction.Debit {
			assert.Equal(t, uncat.ID.String(), p.AccountID.String())
		}
	}
}

func TestCreateExpenseTransaction_IdempotentRetry(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	first, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	second, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())

	txns, err := l.ListTransactions(ctx, testTenant, transaction.Filter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestCreateExpenseTransaction_ConcurrentIdenticalKey(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	const writers = 8
	ids := make([]id.TransactionID, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = l.CreateExpenseTransaction(ctx, expenseInput("exp-race"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0].String(), ids[i].String())
	}

	txns, err := l.ListTransactions(ctx, testTenant, transaction.Filter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1, "exactly one transaction must exist after the race")
}

func TestCreateExpenseTransaction_Validation(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ledger.CreateExpenseInput)
	}{
		{"missing tenant", func(in *ledger.CreateExpenseInput) { in.TenantID = "" }},
		{"zero amount", func(in *ledger.CreateExpenseInput) { in.AmountMinor = 0 }},
		{"negative amount", func(in *ledger.CreateExpenseInput) { in.AmountMinor = -500 }},
		{"missing key", func(in *ledger.CreateExpenseInput) { in.IdempotencyKey = "" }},
		{"missing actor", func(in *ledger.CreateExpenseInput) { in.Actor = "" }},
		{"zero time", func(in *ledger.CreateExpenseInput) { in.OccurredAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := expenseInput("exp-bad")
			tt.mutate(&in)
			_, err := l.CreateExpenseTransaction(ctx, in)
			assert.ErrorIs(t, err, ledger.ErrInvalidInput)
		})
	}
}

func TestGetTransaction_TenantMismatch(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	_, err = l.GetTransaction(ctx, "org_other", txnID)
	assert.ErrorIs(t, err, ledger.ErrTenantMismatch)
}

func TestReverseTransaction_FlipsPostings(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Reason:        "duplicate entry",
		Actor:         "user_9",
	})
	require.NoError(t, err)

	original, err := l.GetTransaction(ctx, testTenant, txnID)
	require.NoError(t, err)
	reversal, err := l.GetTransaction(ctx, testTenant, revID)
	require.NoError(t, err)

	assert.Equal(t, revID.String(), original.ReversedBy.String())
	assert.Equal(t, txnID.String(), reversal.ReversalOf.String())
	assert.True(t, reversal.Balanced())
	require.Len(t, reversal.Postings, 2)

	// Same accounts and amounts, opposite directions.
	byAccount := map[string]transaction.Direction{}
	for _, p := range original.Postings {
		byAccount[p.AccountID.String()] = p.Direction
	}
	for _, p := range reversal.Postings {
		assert.Equal(t, byAccount[p.AccountID.String()].Flip(), p.Direction)
		assert.Equal(t, int64(12550), p.Amount.Amount)
	}
}

func TestReverseTransaction_AlreadyReversed(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	in := ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Reason:        "first",
		Actor:         "user_9",
	}
	_, err = l.ReverseTransaction(ctx, in)
	require.NoError(t, err)

	in.Reason = "second"
	_, err = l.ReverseTransaction(ctx, in)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
}

func TestReverseTransaction_ReversalOfReversal(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Actor:         "user_9",
	})
	require.NoError(t, err)

	// A reversal is itself reversible: it re-establishes the original effect.
	revRevID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: revID,
		Reason:        "reversed in error",
		Actor:         "user_9",
	})
	require.NoError(t, err)

	revRev, err := l.GetTransaction(ctx, testTenant, revRevID)
	require.NoError(t, err)
	assert.Equal(t, revID.String(), revRev.ReversalOf.String())
	assert.True(t, revRev.Balanced())
}

func TestReverseTransaction_NotFound(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	_, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: id.NewTransactionID(),
		Actor:         "user_9",
	})
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestReverseTransaction_TenantMismatch(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	_, err = l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      "org_other",
		TransactionID: txnID,
		Actor:         "user_9",
	})
	assert.ErrorIs(t, err, ledger.ErrTenantMismatch)
}

func TestReverseTransaction_ConcurrentReversals(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	txnID, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-001"))
	require.NoError(t, err)

	const racers = 4
	ids := make([]id.TransactionID, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = l.ReverseTransaction(ctx, ledger.ReverseInput{
				TenantID:      testTenant,
				TransactionID: txnID,
				Actor:         "user_9",
			})
		}(i)
	}
	wg.Wait()

	// Every racer either got the winning reversal's ID or the
	// already-reversed error; at most one reversal exists either way.
	var winner string
	for i := 0; i < racers; i++ {
		if errs[i] == nil {
			if winner == "" {
				winner = ids[i].String()
			}
			assert.Equal(t, winner, ids[i].String())
		} else {
			assert.ErrorIs(t, errs[i], ledger.ErrAlreadyReversed)
		}
	}
	require.NotEmpty(t, winner)

	rev, err := l.Store().GetReversal(ctx, testTenant, txnID)
	require.NoError(t, err)
	assert.Equal(t, winner, rev.ID.String())
}
