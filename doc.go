// Package ledger provides a multi-tenant double-entry expense ledger for Go
// applications.
//
// Ledger is designed as a library, not a service. Import it directly into
// your Go application and wire it to your transport layer. It provides:
//
//   - Append-only double-entry bookkeeping with a hard debits==credits invariant
//   - Idempotent expense recording keyed on (tenant, idempotency key)
//   - Corrections via compensating reversal transactions, never edits
//   - Calendar-month period locks that freeze closed books
//   - Expense reports grouped by month, category, or vendor
//   - Pluggable lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/bookline/ledger"
//	    "github.com/bookline/ledger/store/sqlite"
//	)
//
//	store, err := sqlite.New("./data/ledger.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := ledger.New(store)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Recording an expense debits the category's expense account and credits the
// tenant's Cash account in one atomic transaction:
//
//	txnID, err := l.CreateExpenseTransaction(ctx, ledger.CreateExpenseInput{
//	    TenantID:       "org_123",
//	    OccurredAt:     time.Now(),
//	    Description:    "Team lunch",
//	    AmountMinor:    12550, // $125.50
//	    Category:       "Food",
//	    Vendor:         "Good Eats",
//	    IdempotencyKey: "exp-20240110-001",
//	    Actor:          "user_9",
//	})
//
// Mistakes are corrected with a reversal, which appends a mirrored
// transaction rather than mutating history:
//
//	revID, err := l.ReverseTransaction(ctx, ledger.ReverseInput{
//	    TenantID:      "org_123",
//	    TransactionID: txnID,
//	    Reason:        "duplicate entry",
//	    Actor:         "user_9",
//	})
//
// Closed months are locked so historical totals stay frozen:
//
//	err = l.LockPeriod(ctx, "org_123", "2024-01", "finance-bot")
//
// Reports aggregate committed history, excluding reversed expenses:
//
//	res, err := l.Report(ctx, "org_123", report.Filter{GroupBy: report.GroupCategory})
//
// All monetary amounts are integers in the smallest currency unit (cents for
// USD). Conversion to decimal major units happens only at the report output
// boundary.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	txn_01h2xcejqtf2nbrexx3vqjhp41   // Transaction ID
//	pst_01h455vb4pex5vsknk084sn02q   // Posting ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package ledger
