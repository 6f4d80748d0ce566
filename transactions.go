package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
	"github.com/bookline/ledger/types"
)

// ──────────────────────────────────────────────────
// Transaction Engine
// ──────────────────────────────────────────────────

// CreateExpenseInput carries everything needed to record an expense as a
// balanced transaction. Amounts are integer minor-currency units.
type CreateExpenseInput struct {
	TenantID       string
	OccurredAt     time.Time
	Description    string
	AmountMinor    int64
	Category       string // optional; empty resolves to Uncategorized Expense
	Vendor         string // optional
	IdempotencyKey string
	Actor          string
	Currency       string // optional; defaults to "usd"
}

func (in *CreateExpenseInput) validate() error {
	switch {
	case in.TenantID == "":
		return fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	case in.OccurredAt.IsZero():
		return fmt.Errorf("%w: occurrence time required", ErrInvalidInput)
	case in.AmountMinor <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	case in.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key required", ErrInvalidInput)
	case in.Actor == "":
		return fmt.Errorf("%w: actor required", ErrInvalidInput)
	}
	return nil
}

func (in *CreateExpenseInput) currency() string {
	if in.Currency == "" {
		return types.DefaultCurrency
	}
	return strings.ToLower(in.Currency)
}

// CreateExpenseTransaction records an expense as one balanced, append-only
// transaction: a DEBIT on the category's expense account and a CREDIT on the
// Cash account, both for AmountMinor.
//
// The operation is idempotent on (tenant, idempotency key): a retry, or a
// concurrent duplicate, returns the already-recorded transaction's ID and
// writes nothing. All writes execute in one unit of work; a caller composing
// its own unit of work supplies it through ctx via store.Store.WithTx.
func (l *Ledger) CreateExpenseTransaction(ctx context.Context, in CreateExpenseInput) (id.TransactionID, error) {
	if err := in.validate(); err != nil {
		return id.Nil, err
	}

	var (
		txnID   id.TransactionID
		created *transaction.Transaction
	)
	emitAccounts, err := l.createExpense(ctx, &in, &txnID, &created)
	if IsConflict(err) {
		// A concurrent writer won the (tenant, idempotency_key) race. The
		// constraint is the final arbiter: converge on its transaction.
		existing, getErr := l.store.GetTransactionByIdempotencyKey(ctx, in.TenantID, in.IdempotencyKey)
		if getErr != nil {
			return id.Nil, getErr
		}
		return existing.ID, nil
	}
	if err != nil {
		return id.Nil, err
	}

	for _, emit := range emitAccounts {
		emit()
	}
	if created != nil {
		l.plugins.EmitTransactionCreated(ctx, created)
	}
	return txnID, nil
}

func (l *Ledger) createExpense(ctx context.Context, in *CreateExpenseInput, txnID *id.TransactionID, created **transaction.Transaction) ([]func(), error) {
	var emits []func()

	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// Step 1: idempotency lookup. A retried call returns the original
		// transaction unchanged.
		if existing, err := tx.GetTransactionByIdempotencyKey(ctx, in.TenantID, in.IdempotencyKey); err == nil {
			*txnID = existing.ID
			return nil
		} else if !IsNotFound(err) {
			return err
		}

		if err := guardPeriod(ctx, tx, in.TenantID, in.OccurredAt); err != nil {
			return err
		}

		// Step 2: bootstrap-on-write.
		bootstrapped, err := l.ensureDefaultAccounts(ctx, tx, in.TenantID)
		if err != nil {
			return err
		}
		for _, a := range bootstrapped {
			a := a
			emits = append(emits, func() { l.plugins.EmitAccountCreated(ctx, SystemActor, a) })
		}

		// Step 3: resolve accounts.
		expenseAcct, madeExpenseAcct, err := l.getOrCreateExpenseAccount(ctx, tx, in.TenantID, in.Category)
		if err != nil {
			return err
		}
		if madeExpenseAcct {
			a := expenseAcct
			emits = append(emits, func() { l.plugins.EmitAccountCreated(ctx, SystemActor, a) })
		}
		cashAcct, err := tx.GetAccountByName(ctx, in.TenantID, account.CashName)
		if err != nil {
			return err
		}

		// Step 4: transaction record.
		txn := &transaction.Transaction{
			Entity:         types.EntityAt(l.now()),
			ID:             id.NewTransactionID(),
			TenantID:       in.TenantID,
			OccurredAt:     in.OccurredAt,
			Description:    in.Description,
			Vendor:         in.Vendor,
			IdempotencyKey: in.IdempotencyKey,
			CreatedBy:      in.Actor,
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			// ErrAlreadyExists aborts the unit of work; the caller resolves
			// the winner's transaction outside it.
			return err
		}

		// Step 5: exactly two postings, DEBIT expense / CREDIT cash.
		amount := types.Minor(in.AmountMinor, in.currency())
		postings := []transaction.Posting{
			{
				ID:            id.NewPostingID(),
				TransactionID: txn.ID,
				AccountID:     expenseAcct.ID,
				Direction:     transaction.Debit,
				Amount:        amount,
				Category:      in.Category,
				Memo:          in.Description,
				CreatedAt:     l.now(),
			},
			{
				ID:            id.NewPostingID(),
				TransactionID: txn.ID,
				AccountID:     cashAcct.ID,
				Direction:     transaction.Credit,
				Amount:        amount,
				CreatedAt:     l.now(),
			},
		}
		if err := tx.CreatePostings(ctx, postings); err != nil {
			return err
		}

		// Step 6: recompute totals from the stored postings and assert the
		// balance invariant before anything commits.
		if err := assertBalanced(ctx, tx, txn); err != nil {
			return err
		}

		*txnID = txn.ID
		txn.Postings = postings
		*created = txn
		return nil
	})
	if err != nil {
		var imb *ImbalanceError
		if errors.As(err, &imb) {
			l.logger.Error("ledger: balance invariant violated",
				"tenant_id", in.TenantID,
				"transaction_id", imb.TransactionID,
				"debit_minor", imb.DebitMinor,
				"credit_minor", imb.CreditMinor,
			)
			txID, _ := id.Parse(imb.TransactionID)
			l.plugins.EmitImbalanceDetected(ctx, in.TenantID, txID, imb.DebitMinor, imb.CreditMinor)
		}
		return nil, err
	}
	return emits, nil
}

// assertBalanced re-reads the postings just written and verifies
// sum(DEBIT) == sum(CREDIT). A mismatch is a logic defect: the unit of work
// is aborted so no partial state is observable.
func assertBalanced(ctx context.Context, tx store.Tx, txn *transaction.Transaction) error {
	stored, err := tx.ListPostings(ctx, txn.ID)
	if err != nil {
		return err
	}

	check := *txn
	check.Postings = stored
	debit, credit := check.DebitTotal(), check.CreditTotal()
	if len(stored) == 0 || !debit.Equal(credit) {
		return &ImbalanceError{
			TransactionID: txn.ID.String(),
			DebitMinor:    debit.Amount,
			CreditMinor:   credit.Amount,
			Currency:      debit.Currency,
		}
	}
	return nil
}

// GetTransaction loads one transaction with its postings, enforcing tenancy.
func (l *Ledger) GetTransaction(ctx context.Context, tenantID string, transactionID id.TransactionID) (*transaction.Transaction, error) {
	txn, err := l.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return txn, nil
}

// ListTransactions returns a tenant's transaction history with postings.
func (l *Ledger) ListTransactions(ctx context.Context, tenantID string, f transaction.Filter) ([]*transaction.Transaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}
	return l.store.ListTransactions(ctx, tenantID, f)
}
