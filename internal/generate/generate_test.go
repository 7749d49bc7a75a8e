package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/stage"
)

// scriptedText answers by prompt kind; a nil entry in errs means success.
type scriptedText struct {
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func promptKind(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Summarize"):
		return "summary"
	case strings.HasPrefix(prompt, "Extract the exact company name"):
		return "company"
	case strings.HasPrefix(prompt, "From this webpage summary"):
		return "description"
	case strings.HasPrefix(prompt, "Generate 5 short"):
		return "blurbs"
	}
	return "unknown"
}

func (s *scriptedText) Complete(_ context.Context, prompt string) (string, error) {
	kind := promptKind(prompt)
	s.calls = append(s.calls, kind)
	if err := s.errs[kind]; err != nil {
		return "", err
	}
	return s.replies[kind], nil
}

func happyReplies() map[string]string {
	return map[string]string{
		"summary":     "**Acme Tools** builds precision tools.\n\nThey ship worldwide.",
		"company":     "Acme Tools Ltd",
		"description": "Providing precision tools to manufacturers.",
		"blurbs":      "1. We can streamline your workflows.\n2) We can plan your roadmap.\n3. We can build custom tools.\n4. We can train your staff.\n5. We can monitor quality.\n6. Extra line.",
	}
}

func TestGenerateHappyPath(t *testing.T) {
	text := &scriptedText{replies: happyReplies()}
	content, err := NewGenerator(text, logging.NewNop()).Generate(context.Background(), "Acme Tools site text", "acme-tools.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if content.Summary != "Acme Tools builds precision tools. They ship worldwide." {
		t.Fatalf("summary not flattened: %q", content.Summary)
	}
	if content.CompanyName != "Acme Tools Ltd" {
		t.Fatalf("unexpected company %q", content.CompanyName)
	}
	if content.Description != "providing precision tools to manufacturers." {
		t.Fatalf("unexpected description %q", content.Description)
	}
	if len(content.Blurbs) != BlurbCount || content.Blurbs[1] != "We can plan your roadmap." {
		t.Fatalf("unexpected blurbs %#v", content.Blurbs)
	}
	if len(content.Degraded) != 0 {
		t.Fatalf("expected no degraded fields, got %v", content.Degraded)
	}
	if strings.Join(text.calls, ",") != "summary,company,description,blurbs" {
		t.Fatalf("unexpected call order %v", text.calls)
	}

	fields := content.Fields()
	for _, key := range []string{"summary", "company_name", "company_description", "blurb_1", "blurb_5"} {
		if fields[key] == "" {
			t.Fatalf("missing %s in %#v", key, fields)
		}
	}
	if v, ok := fields["degraded_fields"]; !ok || v != "" {
		t.Fatalf("expected empty degraded_fields, got %q", v)
	}
}

func TestGenerateCompanyFallbackFromWebsite(t *testing.T) {
	text := &scriptedText{
		replies: happyReplies(),
		errs:    map[string]error{"company": services.Wrap(services.ErrTransient, "llm", "complete", "503", nil)},
	}
	content, err := NewGenerator(text, logging.NewNop()).Generate(context.Background(), "site text", "acme-tools.com")
	if err != nil {
		t.Fatalf("partial failure should not fail: %v", err)
	}
	if content.CompanyName != "Acme Tools" {
		t.Fatalf("expected host-derived name, got %q", content.CompanyName)
	}
	if strings.Join(content.Degraded, ",") != FieldCompanyName {
		t.Fatalf("unexpected degraded fields %v", content.Degraded)
	}
}

func TestGenerateUnknownCompanyCountsAsFailure(t *testing.T) {
	replies := happyReplies()
	replies["company"] = "Unknown"
	text := &scriptedText{replies: replies}
	content, err := NewGenerator(text, logging.NewNop()).Generate(context.Background(), "site text", "")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if content.CompanyName != FallbackCompanyName {
		t.Fatalf("expected generic fallback, got %q", content.CompanyName)
	}
}

func TestGenerateEmptySourceSkipsSummaryCall(t *testing.T) {
	text := &scriptedText{replies: happyReplies()}
	content, err := NewGenerator(text, logging.NewNop()).Generate(context.Background(), "   ", "acme-tools.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if content.Summary != EmptySummary {
		t.Fatalf("unexpected summary %q", content.Summary)
	}
	if text.calls[0] != "company" {
		t.Fatalf("summary should not be requested, calls=%v", text.calls)
	}
}

func TestGenerateBlurbFallbackPads(t *testing.T) {
	replies := happyReplies()
	replies["blurbs"] = "Sorry, I cannot help with that."
	text := &scriptedText{replies: replies}
	content, err := NewGenerator(text, logging.NewNop()).Generate(context.Background(), "site text", "acme-tools.com")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	for _, blurb := range content.Blurbs {
		if blurb != FallbackBlurb {
			t.Fatalf("expected fallback blurbs, got %#v", content.Blurbs)
		}
	}
	if strings.Join(content.Degraded, ",") != FieldBlurbs {
		t.Fatalf("unexpected degraded %v", content.Degraded)
	}
}

func TestGenerateCompleteFailures(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "llm", "complete", "503", nil)
	cases := []struct {
		name string
		errs map[string]error
	}{
		{"summary failed", map[string]error{"summary": transient}},
		{"auth rejected", map[string]error{"company": services.Wrap(services.ErrAuth, "llm", "complete", "401", nil)}},
		{"every sub-call failed", map[string]error{"company": transient, "description": transient, "blurbs": transient}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := &scriptedText{replies: happyReplies(), errs: tc.errs}
			exec := NewExecutor(text, logging.NewNop())
			out := exec.Execute(context.Background(), &ledger.Record{ID: "a", Payload: ledger.Payload{
				"source_text": "site text",
				"website":     "acme-tools.com",
			}})
			if out.Kind != stage.KindRetryable {
				t.Fatalf("expected retryable, got %s (%s)", out.Kind, out.Reason)
			}
			if !errors.Is(out.Err, errComplete) {
				t.Fatalf("expected complete-failure error, got %v", out.Err)
			}
		})
	}
}

func TestHelpers(t *testing.T) {
	if got := CompanyNameFromWebsite("https://www.acme-tools.co.uk/about"); got != "Acme Tools" {
		t.Fatalf("unexpected derived name %q", got)
	}
	if got := CompanyNameFromWebsite("localhost"); got != "" {
		t.Fatalf("expected empty name for bare host, got %q", got)
	}
	if got := NormalizeDescription("consulting to retailers"); got != "providing consulting to retailers" {
		t.Fatalf("unexpected description %q", got)
	}
	long := strings.Repeat("a", SummaryInputLimit+10)
	if got := PrepareSummaryInput(long); !strings.HasPrefix(got, strings.Repeat("a", SummaryInputLimit)+"\n\n[Content truncated") {
		t.Fatalf("expected truncation marker, got suffix %q", got[len(got)-40:])
	}
	if got := CleanCompanyName(" \"Acme\" \n extra"); got != "Acme" {
		t.Fatalf("unexpected cleaned name %q", got)
	}
}

type healthCheckedText struct {
	scriptedText
	err error
}

func (p *healthCheckedText) HealthCheck(context.Context) error { return p.err }

func TestExecutorHealthCheck(t *testing.T) {
	if h := NewExecutor(&scriptedText{}, logging.NewNop()).HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("services without a health check are assumed ready, got %+v", h)
	}
	down := &healthCheckedText{err: services.Wrap(services.ErrAuth, "llm", "health", "invalid api key", nil)}
	if h := NewExecutor(down, logging.NewNop()).HealthCheck(context.Background()); h.Ready || h.Detail == "" {
		t.Fatalf("expected unhealthy with detail, got %+v", h)
	}
}
