// Package storetest is a behavioural conformance suite for store.Store
// drivers. Driver tests call Run with a factory that returns a fresh,
// migrated store; the suite then exercises the contract every driver must
// honor: sentinel errors, uniqueness arbitration, unit-of-work atomicity and
// joining, nil-ID NULL round-trips, and timestamp fidelity.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
	"github.com/bookline/ledger/types"
)

// Factory returns a ready-to-use store for one subtest. Drivers backed by a
// shared database may return the same store every time: the suite isolates
// subtests with unique tenant IDs, never by truncating tables.
type Factory func(t *testing.T) store.Store

var tenantSeq atomic.Int64

func newTenant() string {
	return fmt.Sprintf("tenant-%d-%d", time.Now().UnixNano(), tenantSeq.Add(1))
}

func newAccount(tenantID, name string) *account.Account {
	now := time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.UTC)
	return &account.Account{
		Entity:   types.EntityAt(now),
		ID:       id.NewAccountID(),
		TenantID: tenantID,
		Name:     name,
		Type:     account.TypeExpense,
		Currency: "usd",
	}
}

func newTxn(tenantID, key string, occurredAt time.Time) *transaction.Transaction {
	return &transaction.Transaction{
		Entity:         types.EntityAt(occurredAt),
		ID:             id.NewTransactionID(),
		TenantID:       tenantID,
		OccurredAt:     occurredAt,
		Description:    "conformance",
		IdempotencyKey: key,
		CreatedBy:      "tester",
	}
}

// day returns a deterministic occurrence time with sub-second precision that
// every driver preserves (microseconds; TIMESTAMPTZ has no nanoseconds).
func day(d int) time.Time {
	return time.Date(2024, 1, d, 12, 0, 0, 123456000, time.UTC)
}

// Run executes the conformance suite against the given driver.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("UniqueConstraints", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		if err := s.CreateAccount(ctx, newAccount(tenant, "Cash")); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
		if err := s.CreateAccount(ctx, newAccount(tenant, "Cash")); !errors.Is(err, ledger.ErrAlreadyExists) {
			t.Errorf("duplicate account name: got %v, want ErrAlreadyExists", err)
		}
		if err := s.CreateAccount(ctx, newAccount(newTenant(), "Cash")); err != nil {
			t.Errorf("same name, other tenant: %v", err)
		}

		if err := s.CreateTransaction(ctx, newTxn(tenant, "k1", day(10))); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		if err := s.CreateTransaction(ctx, newTxn(tenant, "k1", day(11))); !errors.Is(err, ledger.ErrAlreadyExists) {
			t.Errorf("duplicate idempotency key: got %v, want ErrAlreadyExists", err)
		}

		lock := &periodlock.Lock{ID: id.NewPeriodLockID(), TenantID: tenant, Period: "2024-01", LockedBy: "x", CreatedAt: day(31)}
		if err := s.CreatePeriodLock(ctx, lock); err != nil {
			t.Fatalf("CreatePeriodLock: %v", err)
		}
		dup := &periodlock.Lock{ID: id.NewPeriodLockID(), TenantID: tenant, Period: "2024-01", LockedBy: "y", CreatedAt: day(31)}
		if err := s.CreatePeriodLock(ctx, dup); !errors.Is(err, ledger.ErrAlreadyExists) {
			t.Errorf("duplicate period lock: got %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("NotFoundSentinels", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		if _, err := s.GetAccount(ctx, tenant, id.NewAccountID()); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("GetAccount: got %v, want ErrAccountNotFound", err)
		}
		if _, err := s.GetAccountByName(ctx, tenant, "Cash"); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("GetAccountByName: got %v, want ErrAccountNotFound", err)
		}
		if _, err := s.GetTransaction(ctx, id.NewTransactionID()); !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("GetTransaction: got %v, want ErrTransactionNotFound", err)
		}
		if _, err := s.GetTransactionByIdempotencyKey(ctx, tenant, "nope"); !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("GetTransactionByIdempotencyKey: got %v, want ErrTransactionNotFound", err)
		}
		if _, err := s.GetReversal(ctx, tenant, id.NewTransactionID()); !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("GetReversal: got %v, want ErrTransactionNotFound", err)
		}
		if _, err := s.GetPeriodLock(ctx, tenant, "2024-01"); !ledger.IsNotFound(err) {
			t.Errorf("GetPeriodLock: got %v, want not-found", err)
		}
		err := s.SetReversedBy(ctx, tenant, id.NewTransactionID(), id.NewTransactionID(), day(1))
		if !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("SetReversedBy: got %v, want ErrTransactionNotFound", err)
		}
	})

	t.Run("WithTxRollback", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		boom := errors.New("boom")
		err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.CreateAccount(ctx, newAccount(tenant, "Cash")); err != nil {
				return err
			}
			if err := tx.CreateTransaction(ctx, newTxn(tenant, "k1", day(10))); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx: got %v, want boom", err)
		}

		if _, err := s.GetAccountByName(ctx, tenant, "Cash"); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("account survived rollback: %v", err)
		}
		if _, err := s.GetTransactionByIdempotencyKey(ctx, tenant, "k1"); !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("transaction survived rollback: %v", err)
		}
	})

	t.Run("WithTxCommit", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.CreateAccount(ctx, newAccount(tenant, "Cash")); err != nil {
				return err
			}
			return tx.CreateTransaction(ctx, newTxn(tenant, "k1", day(10)))
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}

		if _, err := s.GetAccountByName(ctx, tenant, "Cash"); err != nil {
			t.Errorf("account not committed: %v", err)
		}
		if _, err := s.GetTransactionByIdempotencyKey(ctx, tenant, "k1"); err != nil {
			t.Errorf("transaction not committed: %v", err)
		}
	})

	t.Run("WithTxJoin", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		boom := errors.New("boom")
		err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.CreateAccount(ctx, newAccount(tenant, "Outer")); err != nil {
				return err
			}

			// The nested call must join, not open a second unit of work.
			err := s.WithTx(ctx, func(ctx context.Context, inner store.Tx) error {
				if _, err := inner.GetAccountByName(ctx, tenant, "Outer"); err != nil {
					return fmt.Errorf("outer write invisible to joined scope: %w", err)
				}
				return inner.CreateAccount(ctx, newAccount(tenant, "Inner"))
			})
			if err != nil {
				return err
			}

			if _, err := tx.GetAccountByName(ctx, tenant, "Inner"); err != nil {
				return fmt.Errorf("joined write invisible to outer scope: %w", err)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx: got %v, want boom", err)
		}

		// The outer rollback discards the joined writes too.
		if _, err := s.GetAccountByName(ctx, tenant, "Outer"); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("outer write survived rollback: %v", err)
		}
		if _, err := s.GetAccountByName(ctx, tenant, "Inner"); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("joined write survived rollback: %v", err)
		}
	})

	t.Run("ConflictInsideJoinedUnitOfWork", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		original := newTxn(tenant, "k1", day(10))
		err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.CreateTransaction(ctx, original); err != nil {
				return err
			}

			// A duplicate insert in a joined scope must surface
			// ErrAlreadyExists without poisoning the enclosing unit of
			// work: the recovery read below has to succeed on the same
			// transaction.
			err := s.WithTx(ctx, func(ctx context.Context, inner store.Tx) error {
				return inner.CreateTransaction(ctx, newTxn(tenant, "k1", day(11)))
			})
			if !errors.Is(err, ledger.ErrAlreadyExists) {
				return fmt.Errorf("duplicate in joined scope: got %v, want ErrAlreadyExists", err)
			}

			winner, err := tx.GetTransactionByIdempotencyKey(ctx, tenant, "k1")
			if err != nil {
				return fmt.Errorf("recovery read after conflict: %w", err)
			}
			if winner.ID != original.ID {
				return fmt.Errorf("recovery read returned %s, want %s", winner.ID, original.ID)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		all, err := s.ListTransactions(ctx, tenant, transaction.Filter{})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if len(all) != 1 || all[0].ID != original.ID {
			t.Fatalf("committed exactly one transaction: got %d", len(all))
		}
	})

	t.Run("ReversalLinkNullRoundTrip", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		orig := newTxn(tenant, "k1", day(10))
		rev := newTxn(tenant, "k2", day(11))
		rev.ReversalOf = orig.ID
		for _, txn := range []*transaction.Transaction{orig, rev} {
			if err := s.CreateTransaction(ctx, txn); err != nil {
				t.Fatalf("CreateTransaction: %v", err)
			}
		}

		got, err := s.GetTransaction(ctx, orig.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if !got.ReversedBy.IsNil() {
			t.Fatalf("fresh transaction must read back a nil ReversedBy, got %s", got.ReversedBy)
		}

		live, err := s.ListTransactions(ctx, tenant, transaction.Filter{ExcludeReversed: true})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if len(live) != 2 {
			t.Fatalf("nothing reversed yet: got %d transactions, want 2", len(live))
		}

		at := day(12)
		if err := s.SetReversedBy(ctx, tenant, orig.ID, rev.ID, at); err != nil {
			t.Fatalf("SetReversedBy: %v", err)
		}

		got, err = s.GetTransaction(ctx, orig.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if got.ReversedBy != rev.ID {
			t.Errorf("ReversedBy = %s, want %s", got.ReversedBy, rev.ID)
		}
		if !got.UpdatedAt.Equal(at) {
			t.Errorf("UpdatedAt = %s, want %s", got.UpdatedAt, at)
		}

		linked, err := s.GetReversal(ctx, tenant, orig.ID)
		if err != nil {
			t.Fatalf("GetReversal: %v", err)
		}
		if linked.ID != rev.ID {
			t.Errorf("GetReversal = %s, want %s", linked.ID, rev.ID)
		}

		live, err = s.ListTransactions(ctx, tenant, transaction.Filter{ExcludeReversed: true})
		if err != nil {
			t.Fatalf("ListTransactions: %v", err)
		}
		if len(live) != 1 || live[0].ID != rev.ID {
			t.Fatalf("reversed original must be filtered out: got %d transactions", len(live))
		}
	})

	t.Run("TimePrecisionRoundTrip", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		// Non-UTC zone with sub-second precision: drivers may normalize the
		// zone but must preserve the instant.
		occurred := time.Date(2024, 5, 20, 10, 30, 0, 123456000, time.FixedZone("CEST", 2*3600))
		txn := newTxn(tenant, "k1", occurred)
		if err := s.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}

		got, err := s.GetTransaction(ctx, txn.ID)
		if err != nil {
			t.Fatalf("GetTransaction: %v", err)
		}
		if !got.OccurredAt.Equal(occurred) {
			t.Errorf("OccurredAt = %s, want instant %s", got.OccurredAt, occurred)
		}
		if !got.CreatedAt.Equal(txn.CreatedAt) {
			t.Errorf("CreatedAt = %s, want %s", got.CreatedAt, txn.CreatedAt)
		}
	})

	t.Run("PostingsRoundTrip", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()
		acct := newAccount(tenant, "Expense: Food")
		if err := s.CreateAccount(ctx, acct); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}

		txn := newTxn(tenant, "k1", day(10))
		if err := s.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}

		postings := []transaction.Posting{
			{
				ID:            id.NewPostingID(),
				TransactionID: txn.ID,
				AccountID:     acct.ID,
				Direction:     transaction.Debit,
				Amount:        types.Minor(12550, "usd"),
				Category:      "Food",
				Memo:          "Team lunch",
				CreatedAt:     day(10),
			},
			{
				ID:            id.NewPostingID(),
				TransactionID: txn.ID,
				AccountID:     acct.ID,
				Direction:     transaction.Credit,
				Amount:        types.Minor(12550, "usd"),
				CreatedAt:     day(10).Add(time.Millisecond),
			},
		}
		if err := s.CreatePostings(ctx, postings); err != nil {
			t.Fatalf("CreatePostings: %v", err)
		}

		got, err := s.ListPostings(ctx, txn.ID)
		if err != nil {
			t.Fatalf("ListPostings: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("ListPostings returned %d postings, want 2", len(got))
		}
		if got[0].Direction != transaction.Debit || got[0].Category != "Food" || got[0].Memo != "Team lunch" {
			t.Errorf("debit leg mangled: %+v", got[0])
		}
		if got[0].Amount.Amount != 12550 || got[0].Amount.Currency != "usd" {
			t.Errorf("debit amount mangled: %+v", got[0].Amount)
		}
		if got[1].Direction != transaction.Credit || got[1].Amount.Amount != 12550 {
			t.Errorf("credit leg mangled: %+v", got[1])
		}
	})

	t.Run("ListTransactionsFilters", func(t *testing.T) {
		s := newStore(t)
		tenant := newTenant()

		byVendor := map[string]string{"k1": "Good Eats", "k2": "Rail Co", "k3": "Good Eats"}
		for i, key := range []string{"k1", "k2", "k3"} {
			txn := newTxn(tenant, key, day(10+i*5))
			txn.Vendor = byVendor[key]
			if err := s.CreateTransaction(ctx, txn); err != nil {
				t.Fatalf("CreateTransaction %s: %v", key, err)
			}
		}

		window, err := s.ListTransactions(ctx, tenant, transaction.Filter{Start: day(12), End: day(18)})
		if err != nil {
			t.Fatalf("ListTransactions window: %v", err)
		}
		if len(window) != 1 || window[0].IdempotencyKey != "k2" {
			t.Fatalf("date window: got %d transactions", len(window))
		}

		vendor, err := s.ListTransactions(ctx, tenant, transaction.Filter{Vendor: "Good Eats"})
		if err != nil {
			t.Fatalf("ListTransactions vendor: %v", err)
		}
		if len(vendor) != 2 {
			t.Fatalf("vendor filter: got %d transactions, want 2", len(vendor))
		}

		page, err := s.ListTransactions(ctx, tenant, transaction.Filter{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatalf("ListTransactions page: %v", err)
		}
		if len(page) != 1 || page[0].IdempotencyKey != "k2" {
			t.Fatalf("paging by occurrence order: got %+v", page)
		}
	})
}
