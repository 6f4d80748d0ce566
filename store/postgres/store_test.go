package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/bookline/ledger/store"
	"github.com/bookline/ledger/store/storetest"
)

// TestStoreConformance needs a live server; point LEDGER_POSTGRES_TEST_DSN at
// a scratch database, e.g. postgres://postgres@localhost:5432/ledger_test.
// The suite isolates itself with unique tenants, so the database is never
// truncated and repeated runs are safe.
func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("LEDGER_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("LEDGER_POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	storetest.Run(t, func(t *testing.T) store.Store { return s })
}
