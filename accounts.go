package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/types"
)

// SystemActor is the sentinel actor identity for automated and bootstrap
// operations.
const SystemActor = "system"

// GL codes assigned to the bootstrap system accounts.
const (
	cashAccountCode          = "1000"
	uncategorizedAccountCode = "5999"
)

// ──────────────────────────────────────────────────
// Account Directory
// ──────────────────────────────────────────────────

// EnsureDefaultAccounts idempotently creates the Cash (ASSET) and
// Uncategorized Expense (EXPENSE) system accounts for a tenant. Safe to call
// repeatedly and concurrently: a racing creation that loses on the
// (tenant, name) uniqueness constraint is treated as success.
func (l *Ledger) EnsureDefaultAccounts(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}

	var created []*account.Account
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		created, err = l.ensureDefaultAccounts(ctx, tx, tenantID)
		return err
	})
	if err != nil {
		return err
	}

	for _, a := range created {
		l.plugins.EmitAccountCreated(ctx, SystemActor, a)
	}
	return nil
}

// ensureDefaultAccounts is the in-transaction bootstrap. It returns the
// accounts actually created so the caller can emit events after commit.
func (l *Ledger) ensureDefaultAccounts(ctx context.Context, tx store.Tx, tenantID string) ([]*account.Account, error) {
	defaults := []struct {
		name string
		typ  account.Type
		code string
	}{
		{account.CashName, account.TypeAsset, cashAccountCode},
		{account.UncategorizedName, account.TypeExpense, uncategorizedAccountCode},
	}

	var created []*account.Account
	for _, d := range defaults {
		_, err := tx.GetAccountByName(ctx, tenantID, d.name)
		if err == nil {
			continue
		}
		if !IsNotFound(err) {
			return nil, err
		}

		a := &account.Account{
			Entity:   types.EntityAt(l.now()),
			ID:       id.NewAccountID(),
			TenantID: tenantID,
			Name:     d.name,
			Type:     d.typ,
			Currency: types.DefaultCurrency,
			System:   true,
			Code:     d.code,
		}
		if err := tx.CreateAccount(ctx, a); err != nil {
			if IsConflict(err) {
				// Lost a bootstrap race; the account exists now.
				continue
			}
			return nil, err
		}
		created = append(created, a)
	}
	return created, nil
}

// GetOrCreateExpenseAccount resolves a category to its dedicated EXPENSE
// account, creating one named "Expense: <category>" on first use. An empty
// category resolves to the Uncategorized Expense system account, which must
// already exist (ErrAccountNotFound signals the bootstrap step was skipped).
func (l *Ledger) GetOrCreateExpenseAccount(ctx context.Context, tenantID, category string) (*account.Account, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}

	var (
		out     *account.Account
		created bool
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, created, err = l.getOrCreateExpenseAccount(ctx, tx, tenantID, category)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		l.plugins.EmitAccountCreated(ctx, SystemActor, out)
	}
	return out, nil
}

func (l *Ledger) getOrCreateExpenseAccount(ctx context.Context, tx store.Tx, tenantID, category string) (*account.Account, bool, error) {
	name := account.ExpenseAccountName(category)

	a, err := tx.GetAccountByName(ctx, tenantID, name)
	if err == nil {
		return a, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}

	// The uncategorized account is never created lazily; its absence means
	// EnsureDefaultAccounts was skipped.
	if category == "" {
		return nil, false, fmt.Errorf("%w: %q (bootstrap missing)", ErrAccountNotFound, name)
	}

	a = &account.Account{
		Entity:   types.EntityAt(l.now()),
		ID:       id.NewAccountID(),
		TenantID: tenantID,
		Name:     name,
		Type:     account.TypeExpense,
		Currency: types.DefaultCurrency,
	}
	if err := tx.CreateAccount(ctx, a); err != nil {
		if IsConflict(err) {
			existing, getErr := tx.GetAccountByName(ctx, tenantID, name)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return a, true, nil
}

// GetCashAccount resolves the tenant's Cash account. ErrAccountNotFound
// signals the bootstrap step was skipped.
func (l *Ledger) GetCashAccount(ctx context.Context, tenantID string) (*account.Account, error) {
	a, err := l.store.GetAccountByName(ctx, tenantID, account.CashName)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %q (bootstrap missing)", ErrAccountNotFound, account.CashName)
		}
		return nil, err
	}
	return a, nil
}

// ListAccounts returns the tenant's chart of accounts.
func (l *Ledger) ListAccounts(ctx context.Context, tenantID string, opts account.ListOpts) ([]*account.Account, error) {
	return l.store.ListAccounts(ctx, tenantID, opts)
}
