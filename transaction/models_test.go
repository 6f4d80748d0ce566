package transaction

import (
	"testing"

	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/types"
)

func TestDirectionFlip(t *testing.T) {
	if got := Debit.Flip(); got != Credit {
		t.Errorf("Debit.Flip() = %q, want %q", got, Credit)
	}
	if got := Credit.Flip(); got != Debit {
		t.Errorf("Credit.Flip() = %q, want %q", got, Debit)
	}
}

func posting(dir Direction, amount int64) Posting {
	return Posting{
		ID:        id.NewPostingID(),
		Direction: dir,
		Amount:    types.Minor(amount, "usd"),
	}
}

func TestBalanced(t *testing.T) {
	tests := []struct {
		name     string
		postings []Posting
		want     bool
	}{
		{"MirroredPair", []Posting{posting(Debit, 12550), posting(Credit, 12550)}, true},
		{"Mismatch", []Posting{posting(Debit, 12550), posting(Credit, 12500)}, false},
		{"SplitDebits", []Posting{posting(Debit, 100), posting(Debit, 50), posting(Credit, 150)}, true},
		{"Empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := &Transaction{Postings: tt.postings}
			if got := txn.Balanced(); got != tt.want {
				t.Errorf("Balanced() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDebitCreditTotals(t *testing.T) {
	txn := &Transaction{Postings: []Posting{
		posting(Debit, 12550),
		posting(Credit, 12550),
	}}

	if got := txn.DebitTotal(); got.Amount != 12550 || got.Currency != "usd" {
		t.Errorf("DebitTotal() = %v", got)
	}
	if got := txn.CreditTotal(); got.Amount != 12550 || got.Currency != "usd" {
		t.Errorf("CreditTotal() = %v", got)
	}
}

func TestReversalLinks(t *testing.T) {
	var txn Transaction
	if txn.IsReversal() || txn.IsReversed() {
		t.Fatal("fresh transaction must carry no reversal links")
	}

	txn.ReversalOf = id.NewTransactionID()
	if !txn.IsReversal() {
		t.Error("ReversalOf set, IsReversal() = false")
	}

	txn.ReversedBy = id.NewTransactionID()
	if !txn.IsReversed() {
		t.Error("ReversedBy set, IsReversed() = false")
	}
}
