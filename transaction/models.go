// Package transaction defines the append-only double-entry transaction and
// posting models.
package transaction

import (
	"time"

	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/types"
)

// Direction marks which side of the ledger a posting lands on.
type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// Transaction is one balanced financial event in a tenant's ledger.
// Transactions are append-only: they are never deleted, and the only
// permitted update after creation is setting ReversedBy exactly once.
type Transaction struct {
	types.Entity
	ID             id.TransactionID `json:"id"`
	TenantID       string           `json:"tenant_id"`
	OccurredAt     time.Time        `json:"occurred_at"`
	Description    string           `json:"description"`
	Vendor         string           `json:"vendor,omitempty"`
	IdempotencyKey string           `json:"idempotency_key"` // unique per tenant
	CreatedBy      string           `json:"created_by"`
	ReversalOf     id.TransactionID `json:"reversal_of,omitempty"` // set when this transaction reverses another
	ReversedBy     id.TransactionID `json:"reversed_by,omitempty"` // set when another transaction reverses this one
	Postings       []Posting        `json:"postings"`
}

// IsReversal reports whether this transaction was created to offset another.
func (t *Transaction) IsReversal() bool { return !t.ReversalOf.IsNil() }

// IsReversed reports whether this transaction has been offset by a reversal.
// A reversed transaction is immutable and may not be reversed again.
func (t *Transaction) IsReversed() bool { return !t.ReversedBy.IsNil() }

// DebitTotal sums the DEBIT postings. All postings of a transaction share a
// currency, so the sum is well-defined.
func (t *Transaction) DebitTotal() types.Money { return total(t.Postings, Debit) }

// CreditTotal sums the CREDIT postings.
func (t *Transaction) CreditTotal() types.Money { return total(t.Postings, Credit) }

// Balanced reports whether debits equal credits. It is computed from the
// postings themselves, never from a separately maintained running total.
func (t *Transaction) Balanced() bool {
	return t.DebitTotal().Equal(t.CreditTotal())
}

func total(postings []Posting, dir Direction) types.Money {
	currency := types.DefaultCurrency
	if len(postings) > 0 {
		currency = postings[0].Amount.Currency
	}
	sum := types.Zero(currency)
	for i := range postings {
		if postings[i].Direction == dir {
			sum = sum.Add(postings[i].Amount)
		}
	}
	return sum
}

// Posting is one leg of a double-entry transaction: a debit or credit of an
// integer minor-unit amount against a single account.
type Posting struct {
	ID            id.PostingID     `json:"id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	AccountID     id.AccountID     `json:"account_id"`
	Direction     Direction        `json:"direction"`
	Amount        types.Money      `json:"amount"`
	Category      string           `json:"category,omitempty"`
	Memo          string           `json:"memo,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Filter selects transactions from a tenant's history. Zero values mean
// "no constraint"; each field maps to exactly one predicate.
type Filter struct {
	Start           time.Time // occurred_at >= Start
	End             time.Time // occurred_at <= End
	Vendor          string    // vendor equality
	ExcludeReversed bool      // drop transactions with a reversal link
	Limit           int
	Offset          int
}
