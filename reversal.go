package ledger

import (
	"context"
	"fmt"

	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/transaction"
	"github.com/bookline/ledger/types"
)

// ──────────────────────────────────────────────────
// Reversal Engine
// ──────────────────────────────────────────────────

// ReverseInput identifies the transaction to reverse and who is reversing it.
type ReverseInput struct {
	TenantID      string
	TransactionID id.TransactionID
	Reason        string
	Actor         string
}

func (in *ReverseInput) validate() error {
	switch {
	case in.TenantID == "":
		return fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	case in.TransactionID.IsNil():
		return fmt.Errorf("%w: transaction id required", ErrInvalidInput)
	case in.Actor == "":
		return fmt.Errorf("%w: actor required", ErrInvalidInput)
	}
	return nil
}

// ReverseTransaction creates a compensating transaction that mirrors every
// posting of the original with its direction flipped. The original is never
// mutated beyond its ReversedBy back-link; history stays append-only.
//
// Reversing an already-reversed transaction fails with ErrAlreadyReversed.
// The reversal is dated now, not at the original's occurrence time, so a
// locked historical period never blocks correcting it; only the current
// period must be open.
func (l *Ledger) ReverseTransaction(ctx context.Context, in ReverseInput) (id.TransactionID, error) {
	if err := in.validate(); err != nil {
		return id.Nil, err
	}

	var (
		reversalID id.TransactionID
		original   *transaction.Transaction
		reversal   *transaction.Transaction
	)
	err := l.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		orig, err := tx.GetTransaction(ctx, in.TransactionID)
		if IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, in.TransactionID)
		}
		if err != nil {
			return err
		}
		if orig.TenantID != in.TenantID {
			return ErrTenantMismatch
		}
		if orig.IsReversed() {
			return fmt.Errorf("%w: %s reversed by %s", ErrAlreadyReversed, orig.ID, orig.ReversedBy)
		}
		// The back-link can lag a crashed writer; the reversal row itself is
		// authoritative.
		if prior, err := tx.GetReversal(ctx, in.TenantID, orig.ID); err == nil {
			reversalID = prior.ID
			return nil
		} else if !IsNotFound(err) {
			return err
		}

		now := l.now()
		if err := guardPeriod(ctx, tx, in.TenantID, now); err != nil {
			return err
		}

		rev := &transaction.Transaction{
			Entity:         types.EntityAt(now),
			ID:             id.NewTransactionID(),
			TenantID:       in.TenantID,
			OccurredAt:     now,
			Description:    reversalDescription(orig),
			Vendor:         orig.Vendor,
			IdempotencyKey: "reversal:" + orig.ID.String(),
			CreatedBy:      in.Actor,
			ReversalOf:     orig.ID,
		}
		if err := tx.CreateTransaction(ctx, rev); err != nil {
			return err
		}

		postings := make([]transaction.Posting, 0, len(orig.Postings))
		for _, p := range orig.Postings {
			postings = append(postings, transaction.Posting{
				ID:            id.NewPostingID(),
				TransactionID: rev.ID,
				AccountID:     p.AccountID,
				Direction:     p.Direction.Flip(),
				Amount:        p.Amount,
				Category:      p.Category,
				Memo:          reversalMemo(in.Reason),
				CreatedAt:     now,
			})
		}
		if err := tx.CreatePostings(ctx, postings); err != nil {
			return err
		}
		if err := assertBalanced(ctx, tx, rev); err != nil {
			return err
		}
		if err := tx.SetReversedBy(ctx, in.TenantID, orig.ID, rev.ID, now); err != nil {
			return err
		}

		reversalID = rev.ID
		rev.Postings = postings
		original, reversal = orig, rev
		return nil
	})
	if IsConflict(err) {
		// Two operators reversed concurrently; the reversal's synthetic
		// idempotency key made the store pick one winner.
		prior, getErr := l.store.GetReversal(ctx, in.TenantID, in.TransactionID)
		if getErr != nil {
			return id.Nil, getErr
		}
		return prior.ID, nil
	}
	if err != nil {
		return id.Nil, err
	}

	if reversal != nil {
		l.plugins.EmitTransactionReversed(ctx, original, reversal, in.Reason)
	}
	return reversalID, nil
}

func reversalDescription(orig *transaction.Transaction) string {
	desc := "Reversal of " + orig.ID.String()
	if orig.Description != "" {
		desc = "Reversal of " + orig.Description
	}
	return desc
}

func reversalMemo(reason string) string {
	if reason == "" {
		return "Reversal"
	}
	return "Reversal: " + reason
}
