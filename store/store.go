// Package store declares the storage interface the ledger engine depends on.
//
// Drivers live in subpackages (memory, sqlite, postgres). The engine is
// injected with a Store and never touches a concrete driver.
package store

import (
	"context"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/transaction"
)

// Tx is the tenant-scoped read/write surface available inside a unit of work.
//
// Uniqueness constraints are the final arbiter for concurrent writers: drivers
// must return ledger.ErrAlreadyExists when an insert conflicts on
// (tenant, name) for accounts, (tenant, idempotency_key) for transactions, or
// (tenant, period) for period locks. The engine converts those conflicts into
// the designed idempotent outcomes.
type Tx interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, tenantID string, accountID id.AccountID) (*account.Account, error)
	GetAccountByName(ctx context.Context, tenantID, name string) (*account.Account, error)
	ListAccounts(ctx context.Context, tenantID string, opts account.ListOpts) ([]*account.Account, error)

	// Transaction methods. Transactions are append-only: no update method
	// exists other than SetReversedBy, and nothing is ever deleted.
	CreateTransaction(ctx context.Context, t *transaction.Transaction) error
	GetTransaction(ctx context.Context, transactionID id.TransactionID) (*transaction.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, tenantID, key string) (*transaction.Transaction, error)
	GetReversal(ctx context.Context, tenantID string, originalID id.TransactionID) (*transaction.Transaction, error)
	SetReversedBy(ctx context.Context, tenantID string, originalID, reversalID id.TransactionID, at time.Time) error
	ListTransactions(ctx context.Context, tenantID string, f transaction.Filter) ([]*transaction.Transaction, error)

	// Posting methods
	CreatePostings(ctx context.Context, postings []transaction.Posting) error
	ListPostings(ctx context.Context, transactionID id.TransactionID) ([]transaction.Posting, error)

	// Period lock methods
	CreatePeriodLock(ctx context.Context, l *periodlock.Lock) error
	GetPeriodLock(ctx context.Context, tenantID string, period periodlock.Period) (*periodlock.Lock, error)
	ListPeriodLocks(ctx context.Context, tenantID string) ([]*periodlock.Lock, error)
}

// Store is the unified storage interface for all Ledger entities.
type Store interface {
	Tx

	// WithTx runs fn inside one atomic unit of work: either every write fn
	// performs lands, or none do. WithTx is join-aware: if ctx already
	// carries an open unit of work for this store (a caller composing its
	// own writes with the ledger's), fn joins it and no new unit of work is
	// opened; commit and rollback then belong to the outermost caller.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
