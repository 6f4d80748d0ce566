package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("ledger: not found")
	ErrAlreadyExists = errors.New("ledger: already exists")
	ErrInvalidInput  = errors.New("ledger: invalid input")

	// Account errors
	ErrAccountNotFound = errors.New("ledger: account not found")

	// Transaction errors
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrTenantMismatch      = errors.New("ledger: transaction belongs to another tenant")
	ErrAlreadyReversed     = errors.New("ledger: transaction already reversed")
	ErrImbalance           = errors.New("ledger: transaction debits and credits do not balance")

	// Period errors
	ErrPeriodLocked = errors.New("ledger: accounting period is locked")

	// Store errors
	ErrStoreClosed       = errors.New("ledger: store is closed")
	ErrTransactionFailed = errors.New("ledger: storage transaction failed")
)

// ImbalanceError reports a violated balance invariant: the sum of DEBIT
// postings did not equal the sum of CREDIT postings for a transaction. It is
// a fatal internal-consistency defect: the enclosing unit of work is aborted
// and nothing is committed.
type ImbalanceError struct {
	TransactionID string
	DebitMinor    int64
	CreditMinor   int64
	Currency      string
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("ledger: transaction %s imbalanced: debits %d != credits %d (%s)",
		e.TransactionID, e.DebitMinor, e.CreditMinor, e.Currency)
}

// Unwrap makes errors.Is(err, ErrImbalance) hold for every ImbalanceError.
func (e *ImbalanceError) Unwrap() error { return ErrImbalance }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsConflict returns true if the error is a uniqueness conflict reported by
// the storage layer. The engine treats these as the designed idempotent
// success path, never as failures to surface.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsUserCorrectable returns true for errors the calling CRUD layer should map
// to a user-facing message rather than an internal failure.
func IsUserCorrectable(err error) bool {
	return errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrAlreadyReversed) ||
		errors.Is(err, ErrInvalidInput)
}
