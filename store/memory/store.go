// Package memory provides an in-memory Store implementation.
//
// It is the reference driver: unit-of-work semantics are implemented with a
// copy-on-write snapshot that is swapped in atomically on commit, and writers
// are serialized so uniqueness checks behave like database constraints.
// Intended for tests and demos; use the sqlite or postgres driver in
// production.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookline/ledger"
	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex // guards state for committed reads/writes
	txMu   sync.Mutex   // serializes units of work
	st     *state
	closed bool
}

// state holds every table. Keys that emulate unique indexes are composed
// with a NUL separator so tenant IDs cannot collide by concatenation.
type state struct {
	accounts     map[string]*account.Account            // account ID -> account
	accountNames map[string]string                      // tenant\x00name -> account ID
	transactions map[string]*transaction.Transaction    // transaction ID -> transaction (no postings)
	idempotency  map[string]string                      // tenant\x00key -> transaction ID
	postings     map[string][]transaction.Posting       // transaction ID -> postings
	locks        map[string]*periodlock.Lock            // tenant\x00period -> lock
}

func newState() *state {
	return &state{
		accounts:     make(map[string]*account.Account),
		accountNames: make(map[string]string),
		transactions: make(map[string]*transaction.Transaction),
		idempotency:  make(map[string]string),
		postings:     make(map[string][]transaction.Posting),
		locks:        make(map[string]*periodlock.Lock),
	}
}

// clone deep-copies the mutable tables. Accounts and locks are immutable
// after insert, so sharing their pointers across snapshots is safe.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.accountNames {
		c.accountNames[k] = v
	}
	for k, v := range st.transactions {
		cp := *v
		c.transactions[k] = &cp
	}
	for k, v := range st.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range st.postings {
		c.postings[k] = append([]transaction.Posting(nil), v...)
	}
	for k, v := range st.locks {
		c.locks[k] = v
	}
	return c
}

func New() *Store {
	return &Store{st: newState()}
}

// ──────────────────────────────────────────────────
// Unit of work
// ──────────────────────────────────────────────────

type txKey struct{}

type txHandle struct {
	owner *Store
	st    *state
}

// WithTx implements store.Store. A nested call joins the ambient unit of
// work; only the outermost call commits.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ledger.ErrStoreClosed
	}
	snapshot := s.st.clone()
	s.mu.RUnlock()

	ctx = context.WithValue(ctx, txKey{}, &txHandle{owner: s, st: snapshot})
	if err := fn(ctx, s); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
	return nil
}

// stateFor resolves the state a call should operate on: the ambient
// transaction snapshot if one is open, otherwise the committed state.
func (s *Store) stateFor(ctx context.Context) (*state, bool) {
	if h, ok := ctx.Value(txKey{}).(*txHandle); ok && h.owner == s {
		return h.st, true
	}
	return s.st, false
}

// write runs fn against the correct state with appropriate locking.
// Standalone writes (outside any unit of work) are serialized like
// single-statement transactions.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if st, inTx := s.stateFor(ctx); inTx {
		return fn(st)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// read runs fn against the correct state with appropriate locking.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if st, inTx := s.stateFor(ctx); inTx {
		return fn(st)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

func key(tenantID, part string) string {
	return tenantID + "\x00" + part
}

// ──────────────────────────────────────────────────
// Account store
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	return s.write(ctx, func(st *state) error {
		nameKey := key(a.TenantID, a.Name)
		if _, exists := st.accountNames[nameKey]; exists {
			return ledger.ErrAlreadyExists
		}
		cp := *a
		st.accounts[a.ID.String()] = &cp
		st.accountNames[nameKey] = a.ID.String()
		return nil
	})
}

func (s *Store) GetAccount(ctx context.Context, tenantID string, accountID id.AccountID) (*account.Account, error) {
	var out *account.Account
	err := s.read(ctx, func(st *state) error {
		a, ok := st.accounts[accountID.String()]
		if !ok || a.TenantID != tenantID {
			return ledger.ErrAccountNotFound
		}
		cp := *a
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) GetAccountByName(ctx context.Context, tenantID, name string) (*account.Account, error) {
	var out *account.Account
	err := s.read(ctx, func(st *state) error {
		aid, ok := st.accountNames[key(tenantID, name)]
		if !ok {
			return ledger.ErrAccountNotFound
		}
		cp := *st.accounts[aid]
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string, opts account.ListOpts) ([]*account.Account, error) {
	var result []*account.Account
	err := s.read(ctx, func(st *state) error {
		for _, a := range st.accounts {
			if a.TenantID != tenantID {
				continue
			}
			if opts.Type != "" && a.Type != opts.Type {
				continue
			}
			if opts.System != nil && a.System != *opts.System {
				continue
			}
			cp := *a
			result = append(result, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Transaction store
// ──────────────────────────────────────────────────

func (s *Store) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	return s.write(ctx, func(st *state) error {
		idemKey := key(t.TenantID, t.IdempotencyKey)
		if _, exists := st.idempotency[idemKey]; exists {
			return ledger.ErrAlreadyExists
		}
		cp := *t
		cp.Postings = nil
		st.transactions[t.ID.String()] = &cp
		st.idempotency[idemKey] = t.ID.String()
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, transactionID id.TransactionID) (*transaction.Transaction, error) {
	var out *transaction.Transaction
	err := s.read(ctx, func(st *state) error {
		t, ok := st.transactions[transactionID.String()]
		if !ok {
			return ledger.ErrTransactionNotFound
		}
		out = withPostings(st, t)
		return nil
	})
	return out, err
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, tenantID, idemKey string) (*transaction.Transaction, error) {
	var out *transaction.Transaction
	err := s.read(ctx, func(st *state) error {
		tid, ok := st.idempotency[key(tenantID, idemKey)]
		if !ok {
			return ledger.ErrTransactionNotFound
		}
		out = withPostings(st, st.transactions[tid])
		return nil
	})
	return out, err
}

func (s *Store) GetReversal(ctx context.Context, tenantID string, originalID id.TransactionID) (*transaction.Transaction, error) {
	var out *transaction.Transaction
	err := s.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.TenantID == tenantID && t.ReversalOf.String() == originalID.String() && !t.ReversalOf.IsNil() {
				out = withPostings(st, t)
				return nil
			}
		}
		return ledger.ErrTransactionNotFound
	})
	return out, err
}

func (s *Store) SetReversedBy(ctx context.Context, tenantID string, originalID, reversalID id.TransactionID, at time.Time) error {
	return s.write(ctx, func(st *state) error {
		t, ok := st.transactions[originalID.String()]
		if !ok || t.TenantID != tenantID {
			return ledger.ErrTransactionNotFound
		}
		cp := *t
		cp.ReversedBy = reversalID
		cp.UpdatedAt = at
		st.transactions[originalID.String()] = &cp
		return nil
	})
}

func (s *Store) ListTransactions(ctx context.Context, tenantID string, f transaction.Filter) ([]*transaction.Transaction, error) {
	var result []*transaction.Transaction
	err := s.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.TenantID != tenantID {
				continue
			}
			if !f.Start.IsZero() && t.OccurredAt.Before(f.Start) {
				continue
			}
			if !f.End.IsZero() && t.OccurredAt.After(f.End) {
				continue
			}
			if f.Vendor != "" && t.Vendor != f.Vendor {
				continue
			}
			if f.ExcludeReversed && t.IsReversed() {
				continue
			}
			result = append(result, withPostings(st, t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.Before(result[j].OccurredAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return paginate(result, f.Offset, f.Limit), nil
}

// withPostings returns a copy of t with its postings attached.
func withPostings(st *state, t *transaction.Transaction) *transaction.Transaction {
	cp := *t
	cp.Postings = append([]transaction.Posting(nil), st.postings[t.ID.String()]...)
	return &cp
}

// ──────────────────────────────────────────────────
// Posting store
// ──────────────────────────────────────────────────

func (s *Store) CreatePostings(ctx context.Context, postings []transaction.Posting) error {
	return s.write(ctx, func(st *state) error {
		for _, p := range postings {
			tid := p.TransactionID.String()
			st.postings[tid] = append(append([]transaction.Posting(nil), st.postings[tid]...), p)
		}
		return nil
	})
}

func (s *Store) ListPostings(ctx context.Context, transactionID id.TransactionID) ([]transaction.Posting, error) {
	var out []transaction.Posting
	err := s.read(ctx, func(st *state) error {
		out = append([]transaction.Posting(nil), st.postings[transactionID.String()]...)
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────
// Period lock store
// ──────────────────────────────────────────────────

func (s *Store) CreatePeriodLock(ctx context.Context, l *periodlock.Lock) error {
	return s.write(ctx, func(st *state) error {
		lockKey := key(l.TenantID, l.Period.String())
		if _, exists := st.locks[lockKey]; exists {
			return ledger.ErrAlreadyExists
		}
		cp := *l
		st.locks[lockKey] = &cp
		return nil
	})
}

func (s *Store) GetPeriodLock(ctx context.Context, tenantID string, period periodlock.Period) (*periodlock.Lock, error) {
	var out *periodlock.Lock
	err := s.read(ctx, func(st *state) error {
		l, ok := st.locks[key(tenantID, period.String())]
		if !ok {
			return ledger.ErrNotFound
		}
		cp := *l
		out = &cp
		return nil
	})
	return out, err
}

func (s *Store) ListPeriodLocks(ctx context.Context, tenantID string) ([]*periodlock.Lock, error) {
	var result []*periodlock.Lock
	err := s.read(ctx, func(st *state) error {
		for _, l := range st.locks {
			if l.TenantID != tenantID {
				continue
			}
			cp := *l
			result = append(result, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Period < result[j].Period })
	return result, nil
}

// ──────────────────────────────────────────────────
// Store management
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
