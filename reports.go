package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/report"
	"github.com/bookline/ledger/transaction"
)

// ──────────────────────────────────────────────────
// Report Aggregator
// ──────────────────────────────────────────────────

// Report aggregates a tenant's expense totals over committed transactions.
// Reversed transactions and their reversals are excluded, so a reversed
// expense contributes nothing. Totals are summed in integer minor units and
// converted to major units only at the output boundary.
func (l *Ledger) Report(ctx context.Context, tenantID string, f report.Filter) (*report.Result, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id required", ErrInvalidInput)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	started := l.now()
	txns, err := l.store.ListTransactions(ctx, tenantID, transaction.Filter{
		Start:           f.Start,
		End:             f.End,
		Vendor:          f.Vendor,
		ExcludeReversed: true,
	})
	if err != nil {
		return nil, err
	}

	type bucket struct {
		minor    int64
		currency string
		count    int
	}
	buckets := map[string]*bucket{}
	add := func(group, currency string, minor int64, countOnce bool) {
		b, ok := buckets[group]
		if !ok {
			b = &bucket{currency: currency}
			buckets[group] = b
		}
		b.minor += minor
		if countOnce {
			b.count++
		}
	}

	for _, txn := range txns {
		if txn.IsReversal() {
			continue
		}
		matched := expensePostings(txn, f.Category)
		if len(matched) == 0 {
			continue
		}

		switch f.GroupBy {
		case report.GroupMonth:
			group := periodlock.PeriodOf(txn.OccurredAt).String()
			for i, p := range matched {
				add(group, p.Amount.Currency, p.Amount.Amount, i == 0)
			}
		case report.GroupVendor:
			group := txn.Vendor
			if group == "" {
				group = report.UnknownVendor
			}
			for i, p := range matched {
				add(group, p.Amount.Currency, p.Amount.Amount, i == 0)
			}
		case report.GroupCategory:
			// A transaction with postings in several categories counts once
			// per category it touches.
			seen := map[string]bool{}
			for _, p := range matched {
				group := p.Category
				if group == "" {
					group = report.UncategorizedCategory
				}
				add(group, p.Amount.Currency, p.Amount.Amount, !seen[group])
				seen[group] = true
			}
		default:
			for i, p := range matched {
				add("", p.Amount.Currency, p.Amount.Amount, i == 0)
			}
		}
	}

	result := &report.Result{}
	for group, b := range buckets {
		result.TotalMinor += b.minor
		result.Count += b.count
		result.Currency = b.currency
		if f.GroupBy != report.GroupNone {
			result.Rows = append(result.Rows, report.Row{
				Group:      group,
				TotalMinor: b.minor,
				TotalMajor: report.MajorUnits(b.minor, b.currency),
				Currency:   b.currency,
				Count:      b.count,
			})
		}
	}
	result.TotalMajor = report.MajorUnits(result.TotalMinor, result.Currency)
	sort.Slice(result.Rows, func(i, j int) bool {
		return result.Rows[i].Group < result.Rows[j].Group
	})

	l.plugins.EmitReportGenerated(ctx, tenantID, len(result.Rows), l.now().Sub(started))
	return result, nil
}

// expensePostings picks the DEBIT postings of a transaction, optionally
// restricted to one category. These are the expense-side legs; the CREDIT
// cash leg never contributes to spend totals.
func expensePostings(txn *transaction.Transaction, category string) []transaction.Posting {
	var out []transaction.Posting
	for _, p := range txn.Postings {
		if p.Direction != transaction.Debit {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}
