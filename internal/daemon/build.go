package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"leadflow/internal/audit"
	"leadflow/internal/config"
	"leadflow/internal/dispatch"
	"leadflow/internal/enrich"
	"leadflow/internal/generate"
	"leadflow/internal/ledger"
	"leadflow/internal/notifications"
	"leadflow/internal/render"
	"leadflow/internal/services/llm"
	"leadflow/internal/source"
	"leadflow/internal/validate"
	"leadflow/internal/workflow"
)

// BuildStages constructs the production executor for every stage.
func BuildStages(cfg *config.Config, logger *slog.Logger) (workflow.StageSet, error) {
	dispatcher, err := dispatch.New(cfg.Dispatch)
	if err != nil {
		return workflow.StageSet{}, err
	}
	if _, err := render.LoadTemplate(cfg.Render.TemplatePath); err != nil {
		return workflow.StageSet{}, fmt.Errorf("load document template: %w", err)
	}

	text := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	converter := render.Converter{
		Command: cfg.Render.ConverterCommand,
		Timeout: time.Duration(cfg.Render.ConverterTimeoutSeconds) * time.Second,
	}
	identity := dispatch.Identity{
		FromAddress:   cfg.Dispatch.FromAddress,
		SignatureName: cfg.Dispatch.SignatureName,
	}

	return workflow.StageSet{
		Validate: validate.NewExecutor(validate.RulesFromConfig(cfg.Rules)),
		Enrich:   enrich.NewExecutor(enrich.NewHTTPFetcher(cfg.Enrich, nil), logger),
		Generate: generate.NewExecutor(text, logger),
		Render:   render.NewExecutor(render.NewFileRenderer(cfg.Paths.ArtifactDir, converter), cfg.Render.TemplatePath, logger),
		Dispatch: dispatch.NewExecutor(dispatcher, identity, logger),
	}, nil
}

// Build opens the ledger and assembles the full daemon for cfg.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	stages, err := BuildStages(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	service := notifications.NewService(cfg)
	notifier, _ := service.(*notifications.Notifier)
	sink := audit.Fanout{
		audit.NewFileSink(cfg.AuditPath(), logger),
		audit.NewNotifierSink(service, logger),
	}

	manager := workflow.NewManager(cfg, store, source.NewSpool(cfg.Source.InboxDir, logger), stages, logger,
		workflow.WithAudit(sink),
		workflow.WithNotifier(service),
	)
	d, err := New(cfg, store, logger, manager, notifier)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
