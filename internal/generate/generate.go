// Package generate produces the personalized copy for a lead: a summary of
// the fetched site, the company name and description, and five blurbs.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"leadflow/internal/ledger"
	"leadflow/internal/logging"
	"leadflow/internal/services"
	"leadflow/internal/stage"
)

// TextService completes a single prompt.
type TextService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Degraded field names recorded in degraded_fields.
const (
	FieldCompanyName        = "company_name"
	FieldCompanyDescription = "company_description"
	FieldBlurbs             = "blurbs"
)

// Content is the full set of generated fields.
type Content struct {
	Summary     string
	CompanyName string
	Description string
	Blurbs      []string
	Degraded    []string
}

// Fields flattens content into ledger payload keys.
func (c Content) Fields() ledger.Payload {
	fields := ledger.Payload{
		"summary":             c.Summary,
		"company_name":        c.CompanyName,
		"company_description": c.Description,
		"degraded_fields":     strings.Join(c.Degraded, ","),
	}
	for i := 0; i < BlurbCount; i++ {
		value := FallbackBlurb
		if i < len(c.Blurbs) {
			value = c.Blurbs[i]
		}
		fields[fmt.Sprintf("blurb_%d", i+1)] = value
	}
	return fields
}

// Generator runs the sequential sub-calls.
type Generator struct {
	text   TextService
	logger *slog.Logger
}

// NewGenerator wires a generator around text.
func NewGenerator(text TextService, logger *slog.Logger) *Generator {
	return &Generator{text: text, logger: logging.NewComponentLogger(logger, "generate")}
}

// errComplete is returned when the content cannot be produced at all.
var errComplete = errors.New("content generation failed")

// Generate produces content for the source text. Partial failures fall back
// and are listed in Content.Degraded; a failed summary, a rejected
// credential, or every sub-call failing returns an error.
func (g *Generator) Generate(ctx context.Context, sourceText, website string) (Content, error) {
	var content Content

	summary, err := g.summarize(ctx, sourceText)
	if err != nil {
		return content, fmt.Errorf("%w: summary: %w", errComplete, err)
	}
	content.Summary = summary

	var failures []error

	name, err := g.complete(ctx, fill(companyPrompt, map[string]string{"summary": summary}))
	name = CleanCompanyName(name)
	if err == nil && name == "" {
		err = errors.New("company name response unusable")
	}
	if err != nil {
		failures = append(failures, err)
		if errors.Is(err, services.ErrAuth) {
			return content, fmt.Errorf("%w: company name: %w", errComplete, err)
		}
		name = CompanyNameFromWebsite(website)
		if name == "" {
			name = FallbackCompanyName
		}
		content.Degraded = append(content.Degraded, FieldCompanyName)
		g.warnDegraded(ctx, FieldCompanyName, err)
	}
	content.CompanyName = name

	desc, err := g.complete(ctx, fill(descriptionPrompt, map[string]string{"summary": summary}))
	desc = NormalizeDescription(desc)
	if err == nil && desc == "" {
		err = errors.New("description response empty")
	}
	if err != nil {
		failures = append(failures, err)
		if errors.Is(err, services.ErrAuth) {
			return content, fmt.Errorf("%w: description: %w", errComplete, err)
		}
		desc = NormalizeDescription(FallbackDescription)
		content.Degraded = append(content.Degraded, FieldCompanyDescription)
		g.warnDegraded(ctx, FieldCompanyDescription, err)
	}
	content.Description = desc

	raw, err := g.complete(ctx, fill(blurbsPrompt, map[string]string{"company_name": name, "summary": summary}))
	blurbs, parsed := ParseBlurbs(raw)
	if err == nil && !parsed {
		err = errors.New("no numbered blurbs in response")
	}
	if err != nil {
		failures = append(failures, err)
		if errors.Is(err, services.ErrAuth) {
			return content, fmt.Errorf("%w: blurbs: %w", errComplete, err)
		}
		content.Degraded = append(content.Degraded, FieldBlurbs)
		g.warnDegraded(ctx, FieldBlurbs, err)
	}
	content.Blurbs = blurbs

	if len(failures) == 3 {
		return content, fmt.Errorf("%w: every sub-call failed: %w", errComplete, errors.Join(failures...))
	}
	return content, nil
}

func (g *Generator) summarize(ctx context.Context, sourceText string) (string, error) {
	if strings.TrimSpace(sourceText) == "" {
		return EmptySummary, nil
	}
	raw, err := g.complete(ctx, fill(summaryPrompt, map[string]string{"content": PrepareSummaryInput(sourceText)}))
	if err != nil {
		return "", err
	}
	summary := FlattenSummary(raw)
	if summary == "" {
		return "", errors.New("summary response empty")
	}
	return summary, nil
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.text.Complete(ctx, prompt)
}

func (g *Generator) warnDegraded(ctx context.Context, field string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), "generated field fell back to default", "generate_degraded",
		logging.String("field", field),
		logging.String(logging.FieldErrorKind, string(services.Classify(err))),
		logging.Error(err),
		logging.String(logging.FieldImpact, "artifact uses fallback text"),
	)
}

// Executor is the generate stage.
type Executor struct {
	generator *Generator
}

// NewExecutor constructs the generate stage around text.
func NewExecutor(text TextService, logger *slog.Logger) *Executor {
	return &Executor{generator: NewGenerator(text, logger)}
}

// Stage implements stage.Executor.
func (e *Executor) Stage() ledger.Stage { return ledger.StageGenerate }

// Execute implements stage.Executor. Complete failure is always retryable.
func (e *Executor) Execute(ctx context.Context, rec *ledger.Record) stage.Outcome {
	content, err := e.generator.Generate(ctx, rec.Field("source_text"), rec.Field("website"))
	if err != nil {
		return stage.Retryable(services.Details(err).Message, err)
	}
	return stage.Advance(content.Fields())
}

type healthProber interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck implements stage.HealthChecker when the text service can be probed.
func (e *Executor) HealthCheck(ctx context.Context) stage.Health {
	prober, ok := e.generator.text.(healthProber)
	if !ok {
		return stage.Healthy(string(ledger.StageGenerate))
	}
	if err := prober.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(string(ledger.StageGenerate), services.Details(err).Message)
	}
	return stage.Healthy(string(ledger.StageGenerate))
}
