package postgres

import (
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/transaction"
)

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = "id, tenant_id, name, type, currency, system, code, created_at, updated_at"

func scanAccount(row scanner) (*account.Account, error) {
	var (
		a   account.Account
		typ string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &typ, &a.Currency, &a.System, &a.Code,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = account.Type(typ)
	return &a, nil
}

const transactionColumns = "id, tenant_id, occurred_at, description, vendor, idempotency_key, created_by, reversal_of, reversed_by, created_at, updated_at"

func scanTransaction(row scanner) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(&t.ID, &t.TenantID, &t.OccurredAt, &t.Description, &t.Vendor,
		&t.IdempotencyKey, &t.CreatedBy, &t.ReversalOf, &t.ReversedBy,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const postingColumns = "id, transaction_id, account_id, direction, amount_minor, currency, category, memo, created_at"

func scanPosting(row scanner) (transaction.Posting, error) {
	var (
		p         transaction.Posting
		direction string
	)
	err := row.Scan(&p.ID, &p.TransactionID, &p.AccountID, &direction,
		&p.Amount.Amount, &p.Amount.Currency, &p.Category, &p.Memo, &p.CreatedAt)
	if err != nil {
		return transaction.Posting{}, err
	}
	p.Direction = transaction.Direction(direction)
	return p, nil
}

const periodLockColumns = "id, tenant_id, period, locked_by, created_at"

func scanPeriodLock(row scanner) (*periodlock.Lock, error) {
	var (
		l      periodlock.Lock
		period string
	)
	err := row.Scan(&l.ID, &l.TenantID, &period, &l.LockedBy, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Period = periodlock.Period(period)
	return &l, nil
}
