package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/periodlock"
)

func TestLockPeriod_BlocksWritesInLockedMonth(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))

	in := expenseInput("exp-jan")
	in.OccurredAt = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := l.CreateExpenseTransaction(ctx, in)
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)

	// An adjacent open month is unaffected.
	in = expenseInput("exp-feb")
	in.OccurredAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = l.CreateExpenseTransaction(ctx, in)
	assert.NoError(t, err)
}

func TestLockPeriod_Idempotent(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))
	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "someone-else"))

	locks, err := l.ListPeriodLocks(ctx, testTenant)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	// The original lock survives the retry untouched.
	assert.Equal(t, "finance-bot", locks[0].LockedBy)
}

func TestLockPeriod_InvalidPeriod(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	for _, p := range []string{"2024-13", "2024-1", "202401", "jan-2024", ""} {
		assert.ErrorIs(t, l.LockPeriod(ctx, testTenant, periodlock.Period(p), "x"), ledger.ErrInvalidInput, "period %q", p)
	}
}

func TestLockPeriod_ScopedToTenant(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))

	in := expenseInput("exp-other")
	in.TenantID = "org_other"
	in.OccurredAt = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := l.CreateExpenseTransaction(ctx, in)
	assert.NoError(t, err, "a lock must not leak across tenants")
}

func TestIsPeriodLocked(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))

	locked, err := l.IsPeriodLocked(ctx, testTenant, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = l.IsPeriodLocked(ctx, testTenant, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestGuardPeriodNotLocked(t *testing.T) {
	l := newTestLedger(t, time.Now())
	ctx := context.Background()

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))

	err := l.GuardPeriodNotLocked(ctx, testTenant, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)
	assert.NoError(t, l.GuardPeriodNotLocked(ctx, testTenant, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReverseTransaction_AllowedWhenOriginalPeriodLocked(t *testing.T) {
	// The reversal is dated now, so a locked historical month never stops a
	// correction as long as the current month is open.
	l := newTestLedger(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	in := expenseInput("exp-jan")
	in.OccurredAt = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	txnID, err := l.CreateExpenseTransaction(ctx, in)
	require.NoError(t, err)

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-01", "finance-bot"))

	revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Reason:        "wrong amount",
		Actor:         "user_9",
	})
	require.NoError(t, err)

	rev, err := l.GetTransaction(ctx, testTenant, revID)
	require.NoError(t, err)
	assert.Equal(t, time.February, rev.OccurredAt.Month())
}

func TestReverseTransaction_BlockedWhenCurrentPeriodLocked(t *testing.T) {
	l := newTestLedger(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	in := expenseInput("exp-jan")
	in.OccurredAt = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	txnID, err := l.CreateExpenseTransaction(ctx, in)
	require.NoError(t, err)

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-02", "finance-bot"))

	_, err = l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Actor:         "user_9",
	})
	assert.ErrorIs(t, err, ledger.ErrPeriodLocked)
}
