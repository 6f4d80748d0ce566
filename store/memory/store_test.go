package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/store/storetest"
	"github.com/bookline/ledger/transaction"
	"github.com/bookline/ledger/types"
)

func newAccount(tenantID, name string) *account.Account {
	return &account.Account{
		Entity:   types.NewEntity(),
		ID:       id.NewAccountID(),
		TenantID: tenantID,
		Name:     name,
		Type:     account.TypeExpense,
		Currency: "usd",
	}
}

func newTxn(tenantID, key string) *transaction.Transaction {
	return &transaction.Transaction{
		Entity:         types.NewEntity(),
		ID:             id.NewTransactionID(),
		TenantID:       tenantID,
		OccurredAt:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
		CreatedBy:      "tester",
	}
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestUniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.CreateAccount(ctx, newAccount("org_a", "Cash")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("org_a", "Cash")); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("duplicate (tenant, name): want ErrAlreadyExists, got %v", err)
	}
	// Same name in another tenant is fine.
	if err := s.CreateAccount(ctx, newAccount("org_b", "Cash")); err != nil {
		t.Fatalf("cross-tenant name: %v", err)
	}

	if err := s.CreateTransaction(ctx, newTxn("org_a", "k1")); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := s.CreateTransaction(ctx, newTxn("org_a", "k1")); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("duplicate (tenant, idempotency_key): want ErrAlreadyExists, got %v", err)
	}
	if err := s.CreateTransaction(ctx, newTxn("org_b", "k1")); err != nil {
		t.Fatalf("cross-tenant idempotency key: %v", err)
	}

	lock := &periodlock.Lock{ID: id.NewPeriodLockID(), TenantID: "org_a", Period: "2024-01", LockedBy: "x", CreatedAt: time.Now()}
	if err := s.CreatePeriodLock(ctx, lock); err != nil {
		t.Fatalf("CreatePeriodLock: %v", err)
	}
	dup := &periodlock.Lock{ID: id.NewPeriodLockID(), TenantID: "org_a", Period: "2024-01", LockedBy: "y", CreatedAt: time.Now()}
	if err := s.CreatePeriodLock(ctx, dup); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("duplicate (tenant, period): want ErrAlreadyExists, got %v", err)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateAccount(ctx, newAccount("org_a", "Cash")); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, newTxn("org_a", "k1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx: want boom, got %v", err)
	}

	// Nothing from the failed unit of work is visible.
	if _, err := s.GetAccountByName(ctx, "org_a", "Cash"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("account leaked out of rolled-back unit of work: %v", err)
	}
	if _, err := s.GetTransactionByIdempotencyKey(ctx, "org_a", "k1"); !errors.Is(err, ledger.ErrTransactionNotFound) {
		t.Fatalf("transaction leaked out of rolled-back unit of work: %v", err)
	}
}

func TestWithTxCommitVisibility(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(txCtx context.Context, tx store.Tx) error {
		if err := tx.CreateAccount(txCtx, newAccount("org_a", "Cash")); err != nil {
			return err
		}
		// Writes are visible inside the same unit of work.
		if _, err := tx.GetAccountByName(txCtx, "org_a", "Cash"); err != nil {
			t.Fatalf("read-own-write: %v", err)
		}
		// But not to readers outside it until commit. The outer ctx carries
		// no unit of work, so this read sees only committed state.
		if _, err := s.GetAccountByName(ctx, "org_a", "Cash"); !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Fatalf("uncommitted write visible outside unit of work: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	if _, err := s.GetAccountByName(ctx, "org_a", "Cash"); err != nil {
		t.Fatalf("committed write not visible: %v", err)
	}
}

func TestWithTxJoinsExisting(t *testing.T) {
	s := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateAccount(ctx, newAccount("org_a", "Cash")); err != nil {
			return err
		}
		// A nested WithTx joins the open unit of work instead of starting
		// its own; its writes roll back with the outer failure.
		if err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.CreateAccount(ctx, newAccount("org_a", "Inner"))
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx: want boom, got %v", err)
	}

	if _, err := s.GetAccountByName(ctx, "org_a", "Inner"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("nested write survived outer rollback: %v", err)
	}
}

func TestListTransactionsOrderingAndPaging(t *testing.T) {
	s := New()
	ctx := context.Background()

	times := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	for i, at := range times {
		txn := newTxn("org_a", "k"+string(rune('0'+i)))
		txn.OccurredAt = at
		if err := s.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	all, err := s.ListTransactions(ctx, "org_a", transaction.Filter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 transactions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].OccurredAt.Before(all[i-1].OccurredAt) {
			t.Fatalf("transactions out of order at %d", i)
		}
	}

	page, err := s.ListTransactions(ctx, "org_a", transaction.Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListTransactions paged: %v", err)
	}
	if len(page) != 1 || !page[0].OccurredAt.Equal(times[2]) {
		t.Fatalf("paging returned wrong slice: %+v", page)
	}
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := newAccount("org_a", "Cash")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	got, err := s.GetAccountByName(ctx, "org_a", "Cash")
	if err != nil {
		t.Fatalf("GetAccountByName: %v", err)
	}
	got.Name = "Mutated"

	again, err := s.GetAccountByName(ctx, "org_a", "Cash")
	if err != nil {
		t.Fatalf("GetAccountByName: %v", err)
	}
	if again.Name != "Cash" {
		t.Fatalf("stored account mutated through returned copy: %q", again.Name)
	}
}

func TestClosedStore(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping before close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.Ping(ctx); !errors.Is(err, ledger.ErrStoreClosed) {
		t.Fatalf("Ping after close: got %v, want ErrStoreClosed", err)
	}
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error { return nil })
	if !errors.Is(err, ledger.ErrStoreClosed) {
		t.Fatalf("WithTx after close: got %v, want ErrStoreClosed", err)
	}
}
