package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/transaction"
)

// Times are stored as RFC 3339 text so the schema stays portable and rows
// stay human-readable.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = "id, tenant_id, name, type, currency, system, code, created_at, updated_at"

func scanAccount(row scanner) (*account.Account, error) {
	var (
		a                    account.Account
		typ                  string
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &typ, &a.Currency, &a.System, &a.Code, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = account.Type(typ)
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

const transactionColumns = "id, tenant_id, occurred_at, description, vendor, idempotency_key, created_by, reversal_of, reversed_by, created_at, updated_at"

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var (
		t                                transaction.Transaction
		occurredAt, createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.TenantID, &occurredAt, &t.Description, &t.Vendor,
		&t.IdempotencyKey, &t.CreatedBy, &t.ReversalOf, &t.ReversedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if t.OccurredAt, err = parseTime(occurredAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

const postingColumns = "id, transaction_id, account_id, direction, amount_minor, currency, category, memo, created_at"

func scanPosting(row scanner) (transaction.Posting, error) {
	var (
		p         transaction.Posting
		direction string
		createdAt string
	)
	err := row.Scan(&p.ID, &p.TransactionID, &p.AccountID, &direction,
		&p.Amount.Amount, &p.Amount.Currency, &p.Category, &p.Memo, &createdAt)
	if err != nil {
		return transaction.Posting{}, err
	}
	p.Direction = transaction.Direction(direction)
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return transaction.Posting{}, err
	}
	return p, nil
}

const periodLockColumns = "id, tenant_id, period, locked_by, created_at"

func scanPeriodLock(row scanner) (*periodlock.Lock, error) {
	var (
		l         periodlock.Lock
		period    string
		createdAt string
	)
	err := row.Scan(&l.ID, &l.TenantID, &period, &l.LockedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	l.Period = periodlock.Period(period)
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// mapNoRows converts sql.ErrNoRows into the given sentinel.
func mapNoRows(err error, sentinel error) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return err
}
