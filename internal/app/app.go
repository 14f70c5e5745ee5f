// Package app wires configuration into the running services.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/adk/model"

	"github.com/easeaico/npc-town/internal/affinity"
	"github.com/easeaico/npc-town/internal/api"
	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/character"
	"github.com/easeaico/npc-town/internal/config"
	"github.com/easeaico/npc-town/internal/dialogue"
	"github.com/easeaico/npc-town/internal/dialoguelog"
	"github.com/easeaico/npc-town/internal/memory"
	"github.com/easeaico/npc-town/internal/models"
	"github.com/easeaico/npc-town/internal/repository"
	"github.com/easeaico/npc-town/internal/scheduler"
)

// App holds every long-lived service.
type App struct {
	Config     config.Config
	Characters *character.Registry
	Model      model.LLM
	Affinity   *affinity.Store
	Memory     memory.Bridge
	Dialogue   *dialogue.Orchestrator
	Scheduler  *scheduler.Scheduler
	Log        *dialoguelog.Logger

	repo repository.MemoryRepo
}

// New builds the service graph. A missing model key is not an error; the
// App then runs offline with template replies and preset idle lines.
// mirror, when non-nil, receives a copy of the dialogue log.
func New(ctx context.Context, cfg config.Config, mirror io.Writer) (*App, error) {
	characters, err := character.LoadFile(cfg.CharactersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load characters: %w", err)
	}

	llm, err := models.New(ctx, cfg)
	switch {
	case apperr.Is(err, apperr.KindConfigurationAbsent):
		slog.Warn("no model key configured, running offline", "provider", cfg.LLMProvider)
		llm = nil
	case err != nil:
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	repo, err := repository.OpenMemoryRepo(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	var embedder memory.Embedder
	if cfg.MemoryBackend == config.MemoryBackendPostgres && cfg.GoogleAPIKey != "" {
		e, err := memory.NewEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	}

	a := &App{
		Config:     cfg,
		Characters: characters,
		Model:      llm,
		Affinity:   affinity.NewStore(),
		Memory:     memory.NewService(repo, embedder, memory.DefaultPolicy()),
		Log:        dialoguelog.New(cfg.LogDir, mirror),
		repo:       repo,
	}

	deps := dialogue.Deps{
		Characters:   characters,
		Affinity:     a.Affinity,
		Memory:       a.Memory,
		Log:          a.Log,
		ModelTimeout: cfg.ModelTimeout,
	}
	if llm != nil {
		deps.Model = llm
		deps.Classifier = affinity.NewClassifier(llm, cfg.ModelTimeout)
	}
	a.Dialogue = dialogue.New(deps)

	a.Scheduler = scheduler.New(
		scheduler.NewGenerator(llm, characters, cfg.ModelTimeout),
		scheduler.Options{Interval: cfg.UpdateInterval, AutoRefresh: cfg.AutoRefresh},
	)

	slog.Info("app initialized",
		"characters", characters.Len(),
		"offline", llm == nil,
		"memory_backend", cfg.MemoryBackend,
		"vector_recall", embedder != nil,
	)
	return a, nil
}

// Handler returns the HTTP handler set over the App's services.
func (a *App) Handler() *api.Handler {
	return api.NewHandler(api.Deps{
		Characters: a.Characters,
		Dialogue:   a.Dialogue,
		Scheduler:  a.Scheduler,
		Affinity:   a.Affinity,
		Memory:     a.Memory,
	})
}

// Close stops the scheduler and releases storage.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(
		a.Scheduler.Stop(ctx),
		a.repo.Close(),
		a.Log.Close(),
	)
}
