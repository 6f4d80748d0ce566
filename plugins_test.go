package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookline/ledger"
	audithook "github.com/bookline/ledger/audit_hook"
	"github.com/bookline/ledger/observability"
	"github.com/bookline/ledger/report"
	"github.com/bookline/ledger/store/memory"
)

type capturingRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (r *capturingRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *capturingRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Action)
	}
	return out
}

type testCounter struct{ n float64 }

func (c *testCounter) Inc()          { c.n++ }
func (c *testCounter) Add(v float64) { c.n += v }

type testHistogram struct{ observations []float64 }

func (h *testHistogram) Observe(v float64) { h.observations = append(h.observations, v) }

type testMetricFactory struct {
	counters   map[string]*testCounter
	histograms map[string]*testHistogram
}

func newTestMetricFactory() *testMetricFactory {
	return &testMetricFactory{
		counters:   map[string]*testCounter{},
		histograms: map[string]*testHistogram{},
	}
}

func (f *testMetricFactory) Counter(name string) observability.Counter {
	c, ok := f.counters[name]
	if !ok {
		c = &testCounter{}
		f.counters[name] = c
	}
	return c
}

func (f *testMetricFactory) Histogram(name string) observability.Histogram {
	h, ok := f.histograms[name]
	if !ok {
		h = &testHistogram{}
		f.histograms[name] = h
	}
	return h
}

func TestLifecyclePlugins(t *testing.T) {
	recorder := &capturingRecorder{}
	factory := newTestMetricFactory()

	l := ledger.New(memory.New(),
		ledger.WithPlugin(audithook.New(recorder)),
		ledger.WithPlugin(observability.NewMetricsExtension(factory)),
		ledger.WithClock(func() time.Time {
			return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		}),
	)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	txnID, err := l.CreateExpenseTransaction(ctx, ledger.CreateExpenseInput{
		TenantID:       testTenant,
		OccurredAt:     time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
		Description:    "Team lunch",
		AmountMinor:    12550,
		Category:       "Food",
		IdempotencyKey: "expense:lunch",
		Actor:          "user_1",
	})
	require.NoError(t, err)

	_, err = l.ReverseTransaction(ctx, ledger.ReverseInput{
		TenantID:      testTenant,
		TransactionID: txnID,
		Reason:        "duplicate",
		Actor:         "user_2",
	})
	require.NoError(t, err)

	require.NoError(t, l.LockPeriod(ctx, testTenant, "2024-02", "finance-bot"))

	_, err = l.Report(ctx, testTenant, report.Filter{GroupBy: report.GroupMonth})
	require.NoError(t, err)

	// Cash and Expense: Food accounts, the expense, its reversal, the lock.
	assert.Equal(t, []string{
		audithook.ActionAccountCreated,
		audithook.ActionAccountCreated,
		audithook.ActionAccountCreated,
		audithook.ActionTransactionCreated,
		audithook.ActionTransactionReversed,
		audithook.ActionPeriodLocked,
	}, recorder.actions())

	assert.Equal(t, float64(3), factory.counters["ledger.account.created"].n)
	assert.Equal(t, float64(1), factory.counters["ledger.transaction.created"].n)
	assert.Equal(t, float64(1), factory.counters["ledger.transaction.reversed"].n)
	assert.Equal(t, float64(1), factory.counters["ledger.period.locked"].n)
	assert.Equal(t, float64(1), factory.counters["ledger.report.generated"].n)
	assert.Equal(t, []float64{12550}, factory.histograms["ledger.transaction.amount_minor"].observations)
}

func TestAuditHookActionFiltering(t *testing.T) {
	recorder := &capturingRecorder{}

	l := ledger.New(memory.New(),
		ledger.WithPlugin(audithook.New(recorder,
			audithook.WithDisabledActions(audithook.ActionAccountCreated),
		)),
	)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	_, err := l.CreateExpenseTransaction(ctx, expenseInput("exp-filtered"))
	require.NoError(t, err)

	assert.Equal(t, []string{audithook.ActionTransactionCreated}, recorder.actions())
}
