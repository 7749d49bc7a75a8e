package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"leadflow/internal/audit"
	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/source"
	"leadflow/internal/stage"
	"leadflow/internal/testsupport"
	"leadflow/internal/validate"
)

// staticSource returns the same messages on every poll, like a spool that
// is never drained.
type staticSource struct {
	messages []source.Message
	err      error
}

func (s *staticSource) FetchNew(context.Context) ([]source.Message, error) {
	return s.messages, s.err
}

func leadMessage(id string) source.Message {
	return source.Message{
		ID:         id,
		Sender:     "Jane Doe <jane@acme-tools.com>",
		Subject:    "Brochure request",
		Body:       "Hi, could you send your brochure? Our site is https://acme-tools.com",
		MessageRef: "<" + id + ">",
	}
}

// stubStage is a configurable executor that counts invocations.
type stubStage struct {
	stage ledger.Stage
	calls atomic.Int32
	fn    func(ctx context.Context, rec *ledger.Record, call int) stage.Outcome
}

func (s *stubStage) Stage() ledger.Stage { return s.stage }

func (s *stubStage) Execute(ctx context.Context, rec *ledger.Record) stage.Outcome {
	call := int(s.calls.Add(1))
	if s.fn == nil {
		return stage.Advance(ledger.Payload{string(s.stage) + "_done": "yes"})
	}
	return s.fn(ctx, rec, call)
}

func advancing(st ledger.Stage, fields ledger.Payload) *stubStage {
	return &stubStage{stage: st, fn: func(context.Context, *ledger.Record, int) stage.Outcome {
		return stage.Advance(fields)
	}}
}

// pipeline is the default stage set: real validation, canned later stages.
type pipeline struct {
	enrich   *stubStage
	generate *stubStage
	render   *stubStage
	dispatch *stubStage
}

func newPipeline(cfg *config.Config) (*pipeline, StageSet) {
	p := &pipeline{
		enrich:   advancing(ledger.StageEnrich, ledger.Payload{"source_text": "Acme builds tools", "source_url": "https://acme-tools.com"}),
		generate: advancing(ledger.StageGenerate, ledger.Payload{"company_name": "Acme Tools", "degraded_fields": ""}),
		render:   advancing(ledger.StageRender, ledger.Payload{"artifact_ref": "/tmp/a.md", "document_ref": "/tmp/a.md"}),
		dispatch: advancing(ledger.StageDispatch, ledger.Payload{"dispatched_to": "jane@acme-tools.com"}),
	}
	return p, StageSet{
		Validate: validate.NewExecutor(validate.RulesFromConfig(cfg.Rules)),
		Enrich:   p.enrich,
		Generate: p.generate,
		Render:   p.render,
		Dispatch: p.dispatch,
	}
}

// memorySink collects audit events.
type memorySink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *memorySink) Append(_ context.Context, event audit.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *memorySink) kinds(id string) []audit.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Kind
	for _, e := range s.events {
		if e.ItemID == id {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (s *memorySink) count(kind audit.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

var errCrash = errors.New("simulated crash")

// crashingLedger fails the first commit to a chosen status, standing in for
// a process that died before the write landed.
type crashingLedger struct {
	Ledger
	failOn  ledger.Status
	crashed atomic.Bool
}

func (c *crashingLedger) Commit(ctx context.Context, t ledger.Transition) (*ledger.Record, error) {
	if t.Next == c.failOn && c.crashed.CompareAndSwap(false, true) {
		return nil, errCrash
	}
	return c.Ledger.Commit(ctx, t)
}

func newTestManager(t *testing.T, cfg *config.Config, store Ledger, src source.Source, set StageSet, opts ...ManagerOption) *Manager {
	t.Helper()
	return NewManager(cfg, store, src, set, logging.NewNop(), opts...)
}

func mustTick(t *testing.T, m *Manager) TickSummary {
	t.Helper()
	summary, err := m.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	return summary
}

func mustGet(t *testing.T, store Ledger, id string) *ledger.Record {
	t.Helper()
	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	if rec == nil {
		t.Fatalf("record %s not found", id)
	}
	return rec
}

func openStore(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, *ledger.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return cfg, testsupport.MustOpenLedger(t, cfg)
}
