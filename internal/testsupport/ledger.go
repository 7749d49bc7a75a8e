package testsupport

import (
	"context"
	"testing"

	"leadflow/internal/config"
	"leadflow/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord creates a seen record with a qualifying intake payload.
func NewRecord(t testing.TB, store *ledger.Store, id string) *ledger.Record {
	t.Helper()

	rec, err := store.Create(context.Background(), id, ledger.Payload{
		"sender":      "Jane Doe <jane@acme-tools.com>",
		"subject":     "Brochure request",
		"body":        "Hi, could you send your brochure? Our site is https://acme-tools.com",
		"message_ref": "<" + id + ">",
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return rec
}
