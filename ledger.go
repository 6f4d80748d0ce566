package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookline/ledger/plugin"
	"github.com/bookline/ledger/store"
)

// Ledger is the double-entry expense ledger engine.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// now is the engine clock; injectable for deterministic tests.
	now func() time.Time
}

// New creates a new Ledger instance backed by the given store.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started", "plugins", l.plugins.Plugins())

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())

	return l.store.Close()
}

// Store returns the underlying store for direct reads by tooling.
func (l *Ledger) Store() store.Store { return l.store }
