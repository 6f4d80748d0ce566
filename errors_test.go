package ledger

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestImbalanceErrorUnwrapsToSentinel(t *testing.T) {
	err := &ImbalanceError{
		TransactionID: "txn_01h2xcejqtf2nbrexx3vqjhp41",
		DebitMinor:    12550,
		CreditMinor:   12500,
		Currency:      "usd",
	}
	if !errors.Is(err, ErrImbalance) {
		t.Fatal("ImbalanceError must match ErrImbalance")
	}

	var imb *ImbalanceError
	wrapped := fmt.Errorf("recording expense: %w", err)
	if !errors.As(wrapped, &imb) {
		t.Fatal("errors.As must recover the ImbalanceError through wrapping")
	}
	if imb.DebitMinor != 12550 || imb.CreditMinor != 12500 {
		t.Fatalf("unexpected totals: %+v", imb)
	}
	if !strings.Contains(err.Error(), "12550") || !strings.Contains(err.Error(), "12500") {
		t.Fatalf("message must carry both totals: %s", err.Error())
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err             error
		notFound        bool
		conflict        bool
		userCorrectable bool
	}{
		{ErrNotFound, true, false, false},
		{ErrAccountNotFound, true, false, false},
		{ErrTransactionNotFound, true, false, false},
		{ErrAlreadyExists, false, true, false},
		{ErrPeriodLocked, false, false, true},
		{ErrAlreadyReversed, false, false, true},
		{ErrInvalidInput, false, false, true},
		{fmt.Errorf("wrapped: %w", ErrPeriodLocked), false, false, true},
		{ErrTenantMismatch, false, false, false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.notFound {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.notFound)
		}
		if got := IsConflict(tt.err); got != tt.conflict {
			t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.conflict)
		}
		if got := IsUserCorrectable(tt.err); got != tt.userCorrectable {
			t.Errorf("IsUserCorrectable(%v) = %v, want %v", tt.err, got, tt.userCorrectable)
		}
	}
}
