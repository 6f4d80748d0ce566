// Package postgres implements store.Store on PostgreSQL via pgx v5.
// Atomicity of a unit of work maps directly onto a database transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	ledger "github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	ledgerstore "github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL with the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger/postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing connection pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Unit of work ====================

type txKey struct{}

type txHandle struct {
	owner *Store
	tx    pgx.Tx
}

// WithTx runs fn inside one database transaction. If ctx already carries an
// open transaction for this store, fn joins it and commit or rollback stays
// with the outermost caller.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		// Join under a savepoint. A unique violation inside fn would
		// otherwise abort the caller's whole transaction (SQLSTATE 25P02)
		// and break the duplicate-key recovery read that follows it.
		sp, err := h.tx.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%w: postgres savepoint: %v", ledger.ErrTransactionFailed, err)
		}
		defer sp.Rollback(ctx)

		ctx = context.WithValue(ctx, txKey{}, &txHandle{owner: s, tx: sp})
		if err := fn(ctx, s); err != nil {
			return err
		}
		if err := sp.Commit(ctx); err != nil {
			return fmt.Errorf("%w: postgres release savepoint: %v", ledger.ErrTransactionFailed, err)
		}
		return nil
	}

	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: postgres begin: %v", ledger.ErrTransactionFailed, err)
	}
	defer pgTx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, &txHandle{owner: s, tx: pgTx})
	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: postgres commit: %v", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) querier {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		return h.tx
	}
	return s.pool
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func mapNoRows(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

// ==================== Account store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, a.Name, string(a.Type), a.Currency, a.System, a.Code,
		a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, tenantID string, accountID id.AccountID) (*account.Account, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, accountID,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) GetAccountByName(ctx context.Context, tenantID, name string) (*account.Account, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = $1 AND name = $2`,
		tenantID, name,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string, opts account.ListOpts) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = $1`
	args := []any{tenantID}

	if opts.Type != "" {
		args = append(args, string(opts.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if opts.System != nil {
		args = append(args, *opts.System)
		query += fmt.Sprintf(` AND system = $%d`, len(args))
	}
	query += ` ORDER BY name ASC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ==================== Transaction store ====================

func (s *Store) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.TenantID, t.OccurredAt, t.Description, t.Vendor,
		t.IdempotencyKey, t.CreatedBy, t.ReversalOf, t.ReversedBy,
		t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetTransaction(ctx context.Context, transactionID id.TransactionID) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1`,
		transactionID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, tenantID, key string) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = $1 AND idempotency_key = $2`,
		tenantID, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) GetReversal(ctx context.Context, tenantID string, originalID id.TransactionID) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = $1 AND reversal_of = $2`,
		tenantID, originalID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) SetReversedBy(ctx context.Context, tenantID string, originalID, reversalID id.TransactionID, at time.Time) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE transactions SET reversed_by = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4`,
		reversalID, at.UTC(), tenantID, originalID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, tenantID string, f transaction.Filter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = $1`
	args := []any{tenantID}

	if !f.Start.IsZero() {
		args = append(args, f.Start)
		query += fmt.Sprintf(` AND occurred_at >= $%d`, len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		query += fmt.Sprintf(` AND occurred_at <= $%d`, len(args))
	}
	if f.Vendor != "" {
		args = append(args, f.Vendor)
		query += fmt.Sprintf(` AND vendor = $%d`, len(args))
	}
	if f.ExcludeReversed {
		query += ` AND reversed_by IS NULL`
	}
	query += ` ORDER BY occurred_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, t := range transactions {
		if transactions[i], err = s.attachPostings(ctx, t); err != nil {
			return nil, err
		}
	}
	return transactions, nil
}

func (s *Store) attachPostings(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	postings, err := s.ListPostings(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Postings = postings
	return t, nil
}

// ==================== Posting store ====================

func (s *Store) CreatePostings(ctx context.Context, postings []transaction.Posting) error {
	for _, p := range postings {
		_, err := s.conn(ctx).Exec(ctx, `
			INSERT INTO postings (`+postingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.TransactionID, p.AccountID, string(p.Direction),
			p.Amount.Amount, p.Amount.Currency, p.Category, p.Memo, p.CreatedAt,
		)
		if isUniqueViolation(err) {
			return ledger.ErrAlreadyExists
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListPostings(ctx context.Context, transactionID id.TransactionID) ([]transaction.Posting, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+postingColumns+` FROM postings
		WHERE transaction_id = $1
		ORDER BY created_at ASC, id ASC`,
		transactionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []transaction.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// ==================== Period lock store ====================

func (s *Store) CreatePeriodLock(ctx context.Context, l *periodlock.Lock) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO period_locks (`+periodLockColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.TenantID, l.Period.String(), l.LockedBy, l.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetPeriodLock(ctx context.Context, tenantID string, period periodlock.Period) (*periodlock.Lock, error) {
	row := s.conn(ctx).QueryRow(ctx, `
		SELECT `+periodLockColumns+` FROM period_locks
		WHERE tenant_id = $1 AND period = $2`,
		tenantID, period.String(),
	)
	l, err := scanPeriodLock(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrNotFound)
	}
	return l, nil
}

func (s *Store) ListPeriodLocks(ctx context.Context, tenantID string) ([]*periodlock.Lock, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+periodLockColumns+` FROM period_locks
		WHERE tenant_id = $1
		ORDER BY period ASC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []*periodlock.Lock
	for rows.Next() {
		l, err := scanPeriodLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
