package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/transaction"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccountCreated      []OnAccountCreated
	onTransactionCreated  []OnTransactionCreated
	onTransactionReversed []OnTransactionReversed
	onPeriodLocked        []OnPeriodLocked
	onImbalanceDetected   []OnImbalanceDetected
	onReportGenerated     []OnReportGenerated
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnTransactionCreated); ok {
		r.onTransactionCreated = append(r.onTransactionCreated, v)
	}
	if v, ok := p.(OnTransactionReversed); ok {
		r.onTransactionReversed = append(r.onTransactionReversed, v)
	}
	if v, ok := p.(OnPeriodLocked); ok {
		r.onPeriodLocked = append(r.onPeriodLocked, v)
	}
	if v, ok := p.(OnImbalanceDetected); ok {
		r.onImbalanceDetected = append(r.onImbalanceDetected, v)
	}
	if v, ok := p.(OnReportGenerated); ok {
		r.onReportGenerated = append(r.onReportGenerated, v)
	}

	return nil
}

// Plugins returns the names of all registered plugins.
func (r *Registry) Plugins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name()
	}
	return names
}

// ──────────────────────────────────────────────────
// Emit helpers. Hook failures are logged, never propagated.
// ──────────────────────────────────────────────────

// EmitInit notifies all OnInit plugins.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	hooks := r.onInit
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnInit(ctx, engine); err != nil {
			r.logger.Warn("plugin: init hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitShutdown notifies all OnShutdown plugins.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	hooks := r.onShutdown
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnShutdown(ctx); err != nil {
			r.logger.Warn("plugin: shutdown hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitAccountCreated notifies all OnAccountCreated plugins.
func (r *Registry) EmitAccountCreated(ctx context.Context, actor string, a *account.Account) {
	r.mu.RLock()
	hooks := r.onAccountCreated
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnAccountCreated(ctx, actor, a); err != nil {
			r.logger.Warn("plugin: account created hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitTransactionCreated notifies all OnTransactionCreated plugins.
func (r *Registry) EmitTransactionCreated(ctx context.Context, t *transaction.Transaction) {
	r.mu.RLock()
	hooks := r.onTransactionCreated
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnTransactionCreated(ctx, t); err != nil {
			r.logger.Warn("plugin: transaction created hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitTransactionReversed notifies all OnTransactionReversed plugins.
func (r *Registry) EmitTransactionReversed(ctx context.Context, original, reversal *transaction.Transaction, reason string) {
	r.mu.RLock()
	hooks := r.onTransactionReversed
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnTransactionReversed(ctx, original, reversal, reason); err != nil {
			r.logger.Warn("plugin: transaction reversed hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitPeriodLocked notifies all OnPeriodLocked plugins.
func (r *Registry) EmitPeriodLocked(ctx context.Context, l *periodlock.Lock) {
	r.mu.RLock()
	hooks := r.onPeriodLocked
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnPeriodLocked(ctx, l); err != nil {
			r.logger.Warn("plugin: period locked hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitImbalanceDetected notifies all OnImbalanceDetected plugins.
func (r *Registry) EmitImbalanceDetected(ctx context.Context, tenantID string, transactionID id.TransactionID, debitMinor, creditMinor int64) {
	r.mu.RLock()
	hooks := r.onImbalanceDetected
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnImbalanceDetected(ctx, tenantID, transactionID, debitMinor, creditMinor); err != nil {
			r.logger.Warn("plugin: imbalance hook failed", "plugin", h.Name(), "error", err)
		}
	}
}

// EmitReportGenerated notifies all OnReportGenerated plugins.
func (r *Registry) EmitReportGenerated(ctx context.Context, tenantID string, rows int, elapsed time.Duration) {
	r.mu.RLock()
	hooks := r.onReportGenerated
	r.mu.RUnlock()

	for _, h := range hooks {
		if err := h.OnReportGenerated(ctx, tenantID, rows, elapsed); err != nil {
			r.logger.Warn("plugin: report generated hook failed", "plugin", h.Name(), "error", err)
		}
	}
}
