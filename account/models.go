// Package account defines the chart-of-accounts model.
package account

import (
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/types"
)

// Type classifies an account in the standard double-entry taxonomy.
type Type string

const (
	TypeAsset     Type = "ASSET"
	TypeLiability Type = "LIABILITY"
	TypeEquity    Type = "EQUITY"
	TypeIncome    Type = "INCOME"
	TypeExpense   Type = "EXPENSE"
)

// Well-known account names created by the directory bootstrap. Category
// accounts are named with the ExpensePrefix followed by the category.
const (
	CashName          = "Cash"
	UncategorizedName = "Uncategorized Expense"
	ExpensePrefix     = "Expense: "
)

// Account is one entry in a tenant's chart of accounts. Accounts are never
// deleted and their identity fields (tenant, name, type, currency) are
// immutable once created.
type Account struct {
	types.Entity
	ID       id.AccountID `json:"id"`
	TenantID string       `json:"tenant_id"`
	Name     string       `json:"name"`
	Type     Type         `json:"type"`
	Currency string       `json:"currency"`
	System   bool         `json:"system"` // protected bootstrap accounts
	Code     string       `json:"code,omitempty"`
}

// ExpenseAccountName returns the dedicated account name for a category.
// An empty category maps to the Uncategorized Expense system account.
func ExpenseAccountName(category string) string {
	if category == "" {
		return UncategorizedName
	}
	return ExpensePrefix + category
}

// ListOpts filters chart-of-accounts listings.
type ListOpts struct {
	Type   Type // zero value matches all types
	System *bool
	Limit  int
	Offset int
}
