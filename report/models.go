// Package report defines the filter and output types for ledger-derived
// expense reports.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookline/ledger/types"
)

// GroupBy selects the aggregation dimension for a report.
type GroupBy string

const (
	GroupNone     GroupBy = ""         // single total + count
	GroupMonth    GroupBy = "month"    // calendar month of occurrence, "2024-01"
	GroupCategory GroupBy = "category" // posting category tag
	GroupVendor   GroupBy = "vendor"   // transaction vendor
)

// Bucket labels for transactions or postings missing the grouping field.
const (
	UnknownVendor         = "Unknown"
	UncategorizedCategory = "Uncategorized"
)

// Filter selects which ledger history contributes to a report. Zero values
// mean "no constraint"; each field maps to exactly one predicate.
type Filter struct {
	Start    time.Time // occurred_at >= Start
	End      time.Time // occurred_at <= End
	Category string    // only DEBIT postings with this category contribute
	Vendor   string    // transaction vendor equality
	GroupBy  GroupBy
}

// Validate rejects unknown grouping dimensions and inverted date ranges.
func (f Filter) Validate() error {
	switch f.GroupBy {
	case GroupNone, GroupMonth, GroupCategory, GroupVendor:
	default:
		return fmt.Errorf("report: unknown group_by %q", f.GroupBy)
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return fmt.Errorf("report: end %s before start %s", f.End.Format(time.DateOnly), f.Start.Format(time.DateOnly))
	}
	return nil
}

// Row is one aggregate bucket. TotalMinor reconciles exactly to ledger
// postings; TotalMajor is the display-currency conversion computed only at
// this output boundary.
type Row struct {
	Group      string          `json:"group"`
	TotalMinor int64           `json:"total_minor"`
	TotalMajor decimal.Decimal `json:"total_major"`
	Currency   string          `json:"currency"`
	Count      int             `json:"count"`
}

// Result is a complete report. With no GroupBy, Rows is empty and
// Total/TotalMajor/Count carry the single aggregate.
type Result struct {
	Rows       []Row           `json:"rows,omitempty"`
	TotalMinor int64           `json:"total_minor"`
	TotalMajor decimal.Decimal `json:"total_major"`
	Currency   string          `json:"currency"`
	Count      int             `json:"count"`
}

// MajorUnits converts an integer minor-unit amount to a major-unit decimal,
// e.g. 12550 usd cents to 125.50.
func MajorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(types.MinorUnits(currency)))
}
