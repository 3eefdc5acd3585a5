package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/sanatorium/backend/internal/config"
	"github.com/zhouzirui/sanatorium/backend/internal/model/persona"
	"github.com/zhouzirui/sanatorium/backend/internal/observability"
	"github.com/zhouzirui/sanatorium/backend/internal/service/ai"
	"github.com/zhouzirui/sanatorium/backend/internal/service/crm"
	dialogService "github.com/zhouzirui/sanatorium/backend/internal/service/dialog"
)

// App holds the services shared by the HTTP server and the CLI.
type App struct {
	Dialog   *dialogService.Service
	Personas persona.Store
	Metrics  *observability.Metrics
}

// Build wires the dialog service from configuration. A missing or broken
// chat model degrades to template replies; a missing CRM degrades to the
// in-memory booking backend.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	personas := persona.NewMemoryStore(persona.Seed())
	metrics := observability.NewMetrics()

	prompts := ai.NewPromptManager()
	if cfg.AI.PromptFile != "" {
		if err := prompts.LoadFile(cfg.AI.PromptFile); err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		logger.Info("prompt overrides loaded", zap.String("file", cfg.AI.PromptFile))
	}

	var generator dialogService.Generator = ai.NewTemplateGenerator(prompts)
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI, prompts, personas.Default(), logger)
		if err != nil {
			logger.Warn("AI service unavailable, using template replies", zap.Error(err))
		} else {
			generator = aiSvc
			logger.Info("AI service initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("model credentials not configured, using template replies")
	}

	var submitter dialogService.Submitter
	if cfg.CRM.Enabled() {
		submitter = crm.NewClient(cfg.CRM, logger)
		logger.Info("CRM client configured", zap.String("base_url", cfg.CRM.BaseURL))
	} else {
		submitter = crm.NewMemoryBackend(logger)
		logger.Info("CRM not configured, bookings kept in memory")
	}

	svc := dialogService.NewService(dialogService.NewStore(), submitter, generator, dialogService.Options{
		Vocabulary:   dialogService.NewVocabulary(cfg.Dialog.ConfirmTokens, cfg.Dialog.CancelTokens, cfg.Dialog.ResumeTokens),
		MaxGuests:    cfg.Dialog.MaxGuests,
		HistoryTurns: cfg.AI.HistoryTurns,
		Logger:       logger,
		Metrics:      metrics,
	})

	return &App{Dialog: svc, Personas: personas, Metrics: metrics}, nil
}
