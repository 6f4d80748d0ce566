// Package sqlite implements store.Store on SQLite via database/sql and the
// mattn/go-sqlite3 driver. The database is opened in WAL mode so readers
// never block the single writer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	ledger "github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	ledgerstore "github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at path. Use ":memory:" for an
// in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger/sqlite: open %s: %w", path, err)
	}
	// SQLite permits a single writer; a larger pool just queues on the
	// database lock.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Unit of work ====================

type txKey struct{}

type txHandle struct {
	owner *Store
	tx    *sql.Tx
}

// WithTx runs fn inside one database transaction. If ctx already carries an
// open transaction for this store, fn joins it and commit or rollback stays
// with the outermost caller.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledgerstore.Tx) error) error {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		return fn(ctx, s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: sqlite begin: %v", ledger.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	ctx = context.WithValue(ctx, txKey{}, &txHandle{owner: s, tx: sqlTx})
	if err := fn(ctx, s); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: sqlite commit: %v", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or the base connection.
func (s *Store) conn(ctx context.Context) dbtx {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		return h.tx
	}
	return s.db
}

// isUniqueViolation reports whether err is a unique or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ==================== Account store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.Name, string(a.Type), a.Currency, a.System, a.Code,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, tenantID string, accountID id.AccountID) (*account.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = ? AND id = ?`,
		tenantID, accountID,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) GetAccountByName(ctx context.Context, tenantID, name string) (*account.Account, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrAccountNotFound)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string, opts account.ListOpts) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id = ?`
	args := []any{tenantID}

	if opts.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(opts.Type))
	}
	if opts.System != nil {
		query += ` AND system = ?`
		args = append(args, *opts.System)
	}
	query += ` ORDER BY name ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
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
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, formatTime(t.OccurredAt), t.Description, t.Vendor,
		t.IdempotencyKey, t.CreatedBy, t.ReversalOf, t.ReversedBy,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetTransaction(ctx context.Context, transactionID id.TransactionID) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = ?`,
		transactionID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, tenantID, key string) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = ? AND idempotency_key = ?`,
		tenantID, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) GetReversal(ctx context.Context, tenantID string, originalID id.TransactionID) (*transaction.Transaction, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = ? AND reversal_of = ?`,
		tenantID, originalID,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrTransactionNotFound)
	}
	return s.attachPostings(ctx, t)
}

func (s *Store) SetReversedBy(ctx context.Context, tenantID string, originalID, reversalID id.TransactionID, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE transactions SET reversed_by = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		reversalID, formatTime(at), tenantID, originalID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, tenantID string, f transaction.Filter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = ?`
	args := []any{tenantID}

	if !f.Start.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		query += ` AND occurred_at <= ?`
		args = append(args, formatTime(f.End))
	}
	if f.Vendor != "" {
		query += ` AND vendor = ?`
		args = append(args, f.Vendor)
	}
	if f.ExcludeReversed {
		query += ` AND reversed_by IS NULL`
	}
	query += ` ORDER BY occurred_at ASC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
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
		_, err := s.conn(ctx).ExecContext(ctx, `
			INSERT INTO postings (`+postingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.TransactionID, p.AccountID, string(p.Direction),
			p.Amount.Amount, p.Amount.Currency, p.Category, p.Memo,
			formatTime(p.CreatedAt),
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
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+postingColumns+` FROM postings
		WHERE transaction_id = ?
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
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO period_locks (`+periodLockColumns+`)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.TenantID, l.Period.String(), l.LockedBy, formatTime(l.CreatedAt),
	)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetPeriodLock(ctx context.Context, tenantID string, period periodlock.Period) (*periodlock.Lock, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `
		SELECT `+periodLockColumns+` FROM period_locks
		WHERE tenant_id = ? AND period = ?`,
		tenantID, period.String(),
	)
	l, err := scanPeriodLock(row)
	if err != nil {
		return nil, mapNoRows(err, ledger.ErrNotFound)
	}
	return l, nil
}

func (s *Store) ListPeriodLocks(ctx context.Context, tenantID string) ([]*periodlock.Lock, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT `+periodLockColumns+` FROM period_locks
		WHERE tenant_id = ?
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
