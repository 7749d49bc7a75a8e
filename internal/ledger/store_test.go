package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"leadflow/internal/ledger"
	"leadflow/internal/testsupport"
)

func TestCreateTwiceReturnsAlreadyExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "msg-1@example.com")
	if rec.Status != ledger.StatusSeen {
		t.Fatalf("expected seen, got %s", rec.Status)
	}
	if rec.Revision != 0 {
		t.Fatalf("expected revision 0, got %d", rec.Revision)
	}
	if rec.Field("subject") != "Brochure request" {
		t.Fatalf("intake payload not stored: %#v", rec.Payload)
	}

	_, err := store.Create(ctx, "msg-1@example.com", ledger.Payload{"subject": "different"})
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	fetched, err := store.Get(ctx, "msg-1@example.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Field("subject") != "Brochure request" {
		t.Fatalf("duplicate create altered payload: %#v", fetched.Payload)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	rec, err := store.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %#v", rec)
	}
}

func TestCommitAdvancesAndBumpsRevision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "a")
	next, err := store.Commit(ctx, ledger.Transition{
		ID:       rec.ID,
		Expected: ledger.StatusSeen,
		Revision: rec.Revision,
		Next:     ledger.StatusValidated,
		Stage:    ledger.StageValidate,
		Delta:    ledger.Payload{"sender_name": "Jane Doe", "website": "acme-tools.com"},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if next.Status != ledger.StatusValidated || next.Revision != 1 {
		t.Fatalf("unexpected committed record: %s@%d", next.Status, next.Revision)
	}

	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Field("website") != "acme-tools.com" || stored.Field("subject") != "Brochure request" {
		t.Fatalf("payload not merged: %#v", stored.Payload)
	}
	if stage, ok := stored.NextStage(); !ok || stage != ledger.StageEnrich {
		t.Fatalf("expected enrich next, got %q (%v)", stage, ok)
	}
}

func TestCommitStaleExpectationConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "a")
	first := ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
	}
	if _, err := store.Commit(ctx, first); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	if _, err := store.Commit(ctx, first); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}

	// Same status, stale revision.
	wrongRev := ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusValidated, Revision: 0,
		Next: ledger.StatusEnriched, Stage: ledger.StageEnrich,
	}
	if _, err := store.Commit(ctx, wrongRev); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale revision, got %v", err)
	}

	if _, err := store.Commit(ctx, ledger.Transition{ID: "missing", Expected: ledger.StatusSeen, Next: ledger.StatusValidated}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitRefusesPayloadOverwrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "a")
	_, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
		Delta: ledger.Payload{"subject": "rewritten"},
	})
	if !errors.Is(err, ledger.ErrPayloadOverwrite) {
		t.Fatalf("expected ErrPayloadOverwrite, got %v", err)
	}

	stored, _ := store.Get(ctx, rec.ID)
	if stored.Status != ledger.StatusSeen || stored.Field("subject") != "Brochure request" {
		t.Fatalf("rejected commit must not change the record: %#v", stored)
	}

	// Identical value is a no-op.
	if _, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
		Delta: ledger.Payload{"subject": "Brochure request"},
	}); err != nil {
		t.Fatalf("identical rewrite should succeed: %v", err)
	}
}

func TestCommitCountsAttemptsAndCarriesFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "a")
	rec, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusSeen, Revision: rec.Revision,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
	})
	if err != nil {
		t.Fatalf("validate commit failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		expected := rec.Status
		rec, err = store.Commit(ctx, ledger.Transition{
			ID: rec.ID, Expected: expected, Revision: rec.Revision,
			Next: ledger.StatusFailed, Stage: ledger.StageEnrich,
			Reason: fmt.Sprintf("timeout %d", i), CountAttempt: true,
		})
		if err != nil {
			t.Fatalf("failure commit %d failed: %v", i, err)
		}
	}

	stored, _ := store.Get(ctx, rec.ID)
	if stored.Status != ledger.StatusFailed || stored.FailedStage != ledger.StageEnrich {
		t.Fatalf("unexpected failure state: %s/%s", stored.Status, stored.FailedStage)
	}
	if stored.Reason != "timeout 1" {
		t.Fatalf("unexpected reason %q", stored.Reason)
	}
	if stored.AttemptCount(ledger.StageEnrich) != 2 {
		t.Fatalf("expected 2 enrich attempts, got %d", stored.AttemptCount(ledger.StageEnrich))
	}
	if stage, ok := stored.NextStage(); !ok || stage != ledger.StageEnrich {
		t.Fatalf("failed record should retry enrich, got %q", stage)
	}

	advanced, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusFailed, Revision: stored.Revision,
		Next: ledger.StatusEnriched, Stage: ledger.StageEnrich,
	})
	if err != nil {
		t.Fatalf("recovery commit failed: %v", err)
	}
	if advanced.FailedStage != "" || advanced.Reason != "" {
		t.Fatalf("advance should clear failure fields: %#v", advanced)
	}
	if advanced.AttemptCount(ledger.StageEnrich) != 2 {
		t.Fatalf("attempts must survive advance, got %d", advanced.AttemptCount(ledger.StageEnrich))
	}
}

func TestCommitFromTerminalConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecord(t, store, "a")
	rec, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusRejected, Stage: ledger.StageValidate, Reason: "no-keyword",
	})
	if err != nil {
		t.Fatalf("reject commit failed: %v", err)
	}
	if _, err := store.Commit(ctx, ledger.Transition{
		ID: rec.ID, Expected: ledger.StatusRejected, Revision: rec.Revision,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
	}); !errors.Is(err, ledger.ErrConflict) {
		t.Fatalf("expected terminal conflict, got %v", err)
	}
}

func TestListFiltersOrdersAndLimits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b", "d"} {
		testsupport.NewRecord(t, store, id)
	}
	b, _ := store.Get(ctx, "b")
	if _, err := store.Commit(ctx, ledger.Transition{
		ID: "b", Expected: b.Status, Revision: b.Revision,
		Next: ledger.StatusRejected, Stage: ledger.StageValidate, Reason: "no-keyword",
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	ids, err := store.List(ctx, 0, ledger.EligibleStatuses()...)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got := fmt.Sprint(ids); got != "[c a d]" {
		t.Fatalf("expected creation order without rejected, got %s", got)
	}

	limited, err := store.List(ctx, 2, ledger.StatusSeen)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 || limited[0] != "c" {
		t.Fatalf("unexpected limited list: %v", limited)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected all records, got %v", all)
	}

	records, err := store.ListRecords(ctx, 0, ledger.StatusRejected)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].Reason != "no-keyword" {
		t.Fatalf("unexpected rejected records: %#v", records)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	testsupport.NewRecord(t, store, "durable")
	if _, err := store.Commit(ctx, ledger.Transition{
		ID: "durable", Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusValidated, Stage: ledger.StageValidate,
		Delta: ledger.Payload{"website": "acme-tools.com"},
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenLedger(t, cfg)
	rec, err := reopened.Get(ctx, "durable")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil || rec.Status != ledger.StatusValidated || rec.Field("website") != "acme-tools.com" {
		t.Fatalf("state lost across reopen: %#v", rec)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", cfg.LedgerPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := ledger.Open(cfg); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.NewRecord(t, store, "a")
	testsupport.NewRecord(t, store, "b")
	if _, err := store.Commit(ctx, ledger.Transition{
		ID: "b", Expected: ledger.StatusSeen, Revision: 0,
		Next: ledger.StatusDead, Stage: ledger.StageValidate, Reason: "panic",
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[ledger.StatusSeen] != 1 || stats[ledger.StatusDead] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Active != 1 || health.Dead != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || db.TotalRecords != 2 {
		t.Fatalf("unexpected db health: %+v", db)
	}
	if db.JournalMode != "wal" {
		t.Fatalf("expected wal journal, got %q", db.JournalMode)
	}
}
