// Package audithook bridges ledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on any
// particular audit store. Callers inject a RecorderFunc adapter that bridges
// to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/plugin"
	"github.com/bookline/ledger/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccountCreated      = (*Extension)(nil)
	_ plugin.OnTransactionCreated  = (*Extension)(nil)
	_ plugin.OnTransactionReversed = (*Extension)(nil)
	_ plugin.OnPeriodLocked        = (*Extension)(nil)
	_ plugin.OnImbalanceDetected   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is defined
// locally so callers can bridge to whatever audit store they run without this
// package importing it.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	TenantID   string         `json:"tenant_id"`
	Actor      string         `json:"actor,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger lifecycle events to an audit trail backend.
// Recording is best-effort: a failing Recorder is logged, never propagated,
// so audit outages cannot block ledger writes.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, actor string, acct *account.Account) error {
	return e.record(ctx, acct.TenantID, actor,
		ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, acct.ID.String(), CategoryLedger,
		"name", acct.Name,
		"type", string(acct.Type),
		"system", acct.System,
	)
}

// OnTransactionCreated implements plugin.OnTransactionCreated.
func (e *Extension) OnTransactionCreated(ctx context.Context, txn *transaction.Transaction) error {
	return e.record(ctx, txn.TenantID, txn.CreatedBy,
		ActionTransactionCreated, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryLedger,
		"occurred_at", txn.OccurredAt,
		"vendor", txn.Vendor,
		"postings", len(txn.Postings),
		"debit_minor", txn.DebitTotal().Amount,
	)
}

// OnTransactionReversed implements plugin.OnTransactionReversed.
func (e *Extension) OnTransactionReversed(ctx context.Context, original, reversal *transaction.Transaction, reason string) error {
	return e.record(ctx, original.TenantID, reversal.CreatedBy,
		ActionTransactionReversed, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, original.ID.String(), CategoryLedger,
		"reversal_id", reversal.ID.String(),
		"reason", reason,
	)
}

// OnPeriodLocked implements plugin.OnPeriodLocked.
func (e *Extension) OnPeriodLocked(ctx context.Context, lock *periodlock.Lock) error {
	return e.record(ctx, lock.TenantID, lock.LockedBy,
		ActionPeriodLocked, SeverityInfo, OutcomeSuccess,
		ResourcePeriod, lock.Period.String(), CategoryClose,
		"lock_id", lock.ID.String(),
	)
}

// OnImbalanceDetected implements plugin.OnImbalanceDetected.
func (e *Extension) OnImbalanceDetected(ctx context.Context, tenantID string, transactionID id.TransactionID, debitMinor, creditMinor int64) error {
	return e.record(ctx, tenantID, "",
		ActionImbalanceDetected, SeverityCritical, OutcomeFailure,
		ResourceTransaction, transactionID.String(), CategoryLedger,
		"debit_minor", debitMinor,
		"credit_minor", creditMinor,
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	tenantID, actor string,
	action, severity, outcome string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
