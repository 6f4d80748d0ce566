package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/store"
)

// ──────────────────────────────────────────────────
// Period Lock Guard
// ──────────────────────────────────────────────────

// LockPeriod closes a calendar month for a tenant. Locking is idempotent:
// re-locking an already-locked period succeeds without changing the existing
// lock, so close-of-books jobs can be retried freely. Locks are permanent.
func (l *Ledger) LockPeriod(ctx context.Context, tenantID string, period periodlock.Period, lockedBy string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}
	if err := period.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if lockedBy == "" {
		lockedBy = SystemActor
	}

	lock := &periodlock.Lock{
		ID:        id.NewPeriodLockID(),
		TenantID:  tenantID,
		Period:    period,
		LockedBy:  lockedBy,
		CreatedAt: l.now(),
	}
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreatePeriodLock(ctx, lock)
	})
	if IsConflict(err) {
		return nil
	}
	if err != nil {
		return err
	}

	l.logger.Info("ledger: period locked",
		"tenant_id", tenantID,
		"period", period,
		"locked_by", lockedBy,
	)
	l.plugins.EmitPeriodLocked(ctx, lock)
	return nil
}

// IsPeriodLocked reports whether the month containing t is locked for the
// tenant.
func (l *Ledger) IsPeriodLocked(ctx context.Context, tenantID string, t time.Time) (bool, error) {
	_, err := l.store.GetPeriodLock(ctx, tenantID, periodlock.PeriodOf(t))
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GuardPeriodNotLocked returns ErrPeriodLocked when the month containing t is
// closed for the tenant. Callers mutating historical records should check
// both the old and the new effective dates before writing.
func (l *Ledger) GuardPeriodNotLocked(ctx context.Context, tenantID string, t time.Time) error {
	period := periodlock.PeriodOf(t)
	_, err := l.store.GetPeriodLock(ctx, tenantID, period)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrPeriodLocked, period)
}

// ListPeriodLocks returns every locked period for a tenant.
func (l *Ledger) ListPeriodLocks(ctx context.Context, tenantID string) ([]*periodlock.Lock, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}
	return l.store.ListPeriodLocks(ctx, tenantID)
}

// guardPeriod rejects a write whose effective time falls in a locked month.
func guardPeriod(ctx context.Context, tx store.Tx, tenantID string, t time.Time) error {
	period := periodlock.PeriodOf(t)
	_, err := tx.GetPeriodLock(ctx, tenantID, period)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrPeriodLocked, period)
}
