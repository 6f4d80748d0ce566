// Package plugin provides an extensible plugin system for Ledger.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a chart-of-accounts account is created.
// actor is the identity that triggered the creation ("system" for bootstrap).
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, actor string, a *account.Account) error
}

// OnTransactionCreated is called after a balanced transaction commits.
type OnTransactionCreated interface {
	Plugin
	OnTransactionCreated(ctx context.Context, t *transaction.Transaction) error
}

// OnTransactionReversed is called after a reversal commits. original carries
// the now-set reversal link; reversal carries the offsetting postings.
type OnTransactionReversed interface {
	Plugin
	OnTransactionReversed(ctx context.Context, original, reversal *transaction.Transaction, reason string) error
}

// OnPeriodLocked is called when a period lock is first created (not on
// idempotent re-locks).
type OnPeriodLocked interface {
	Plugin
	OnPeriodLocked(ctx context.Context, l *periodlock.Lock) error
}

// OnImbalanceDetected is called when the balance invariant check fails.
// This signals a logic defect and should reach operational alerting.
type OnImbalanceDetected interface {
	Plugin
	OnImbalanceDetected(ctx context.Context, tenantID string, transactionID id.TransactionID, debitMinor, creditMinor int64) error
}

// OnReportGenerated is called after a report aggregation completes.
type OnReportGenerated interface {
	Plugin
	OnReportGenerated(ctx context.Context, tenantID string, rows int, elapsed time.Duration) error
}
