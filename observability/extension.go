// Package observability provides a metrics extension that records ledger
// lifecycle event counts through an injected MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/bookline/ledger/account"
	"github.com/bookline/ledger/id"
	"github.com/bookline/ledger/periodlock"
	"github.com/bookline/ledger/plugin"
	"github.com/bookline/ledger/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated      = (*MetricsExtension)(nil)
	_ plugin.OnTransactionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnTransactionReversed = (*MetricsExtension)(nil)
	_ plugin.OnPeriodLocked        = (*MetricsExtension)(nil)
	_ plugin.OnImbalanceDetected   = (*MetricsExtension)(nil)
	_ plugin.OnReportGenerated     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics. It is defined locally so any metrics backend
// can be bridged in at wiring time.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide lifecycle metrics.
// Register it as a plugin to automatically track write and report activity.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter

	// Transaction metrics
	TransactionsCreated  Counter
	TransactionsReversed Counter
	TransactionAmount    Histogram

	// Period metrics
	PeriodsLocked Counter

	// Integrity metrics
	ImbalancesDetected Counter

	// Report metrics
	ReportsGenerated Counter
	ReportRows       Histogram
	ReportLatency    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		AccountsCreated: factory.Counter("ledger.account.created"),

		TransactionsCreated:  factory.Counter("ledger.transaction.created"),
		TransactionsReversed: factory.Counter("ledger.transaction.reversed"),
		TransactionAmount:    factory.Histogram("ledger.transaction.amount_minor"),

		PeriodsLocked: factory.Counter("ledger.period.locked"),

		ImbalancesDetected: factory.Counter("ledger.imbalance.detected"),

		ReportsGenerated: factory.Counter("ledger.report.generated"),
		ReportRows:       factory.Histogram("ledger.report.rows"),
		ReportLatency:    factory.Histogram("ledger.report.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ string, _ *account.Account) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnTransactionCreated implements plugin.OnTransactionCreated.
func (m *MetricsExtension) OnTransactionCreated(_ context.Context, t *transaction.Transaction) error {
	m.TransactionsCreated.Inc()
	m.TransactionAmount.Observe(float64(t.DebitTotal().Amount))
	return nil
}

// OnTransactionReversed implements plugin.OnTransactionReversed.
func (m *MetricsExtension) OnTransactionReversed(_ context.Context, _, _ *transaction.Transaction, _ string) error {
	m.TransactionsReversed.Inc()
	return nil
}

// OnPeriodLocked implements plugin.OnPeriodLocked.
func (m *MetricsExtension) OnPeriodLocked(_ context.Context, _ *periodlock.Lock) error {
	m.PeriodsLocked.Inc()
	return nil
}

// OnImbalanceDetected implements plugin.OnImbalanceDetected.
func (m *MetricsExtension) OnImbalanceDetected(_ context.Context, _ string, _ id.TransactionID, _, _ int64) error {
	m.ImbalancesDetected.Inc()
	return nil
}

// OnReportGenerated implements plugin.OnReportGenerated.
func (m *MetricsExtension) OnReportGenerated(_ context.Context, _ string, rows int, elapsed time.Duration) error {
	m.ReportsGenerated.Inc()
	m.ReportRows.Observe(float64(rows))
	m.ReportLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
