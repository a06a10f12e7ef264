package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/coordinator"
	"inferd/internal/guardian"
	"inferd/internal/manager"
	"inferd/internal/registry"
	"inferd/internal/runner"
	"inferd/internal/runners/llamacpp"
	"inferd/internal/runners/openai"
	"inferd/internal/settings"
	"inferd/pkg/types"
)

// engine wires the registry, manager and coordinator for one process.
type engine struct {
	log   zerolog.Logger
	reg   *registry.Registry
	store *settings.Store
	mgr   *manager.Manager
	coord *coordinator.Coordinator
}

func buildEngine(cfg config.Config, log zerolog.Logger) (*engine, error) {
	reg := registry.New()
	if err := registerLocal(reg, cfg, log); err != nil {
		return nil, err
	}
	if err := registerRemotes(reg, cfg, log); err != nil {
		return nil, err
	}

	es, err := cfg.EngineSettings()
	if err != nil {
		return nil, err
	}
	store := settings.NewStore(es)
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		Settings:      store,
		BudgetMB:      cfg.BudgetMB,
		MarginMB:      cfg.MarginMB,
		MaxQueueDepth: cfg.Admission.MaxQueueDepth,
		MaxWait:       cfg.Admission.MaxWait(),
		DrainTimeout:  cfg.Admission.DrainTimeout(),
		Logger:        &log,
	})
	mgr.SetEventPublisher(manager.NewLogPublisher(mgr))

	var pipeline guardian.Pipeline
	switch cfg.Guardian.Pipeline {
	case config.PipelineRunner:
		pipeline = guardian.NewRunnerPipeline(func(ctx context.Context) (runner.Runner, error) {
			return mgr.Resolve(ctx, runner.CapabilityGuardian)
		})
	default:
		pipeline = guardian.NewTermPipeline()
	}

	coord := coordinator.New(coordinator.Config{Source: mgr, Pipeline: pipeline, Logger: &log})
	return &engine{log: log, reg: reg, store: store, mgr: mgr, coord: coord}, nil
}

// registerLocal adds one llama.cpp runner per GGUF file. A missing models
// directory is not fatal: remote runners may cover every capability.
func registerLocal(reg *registry.Registry, cfg config.Config, log zerolog.Logger) error {
	if cfg.ModelsDir == "" {
		return nil
	}
	dir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return err
	}
	if !fsutil.PathExists(dir) {
		log.Warn().Str("dir", dir).Msg("models dir not found; no local runners")
		return nil
	}
	prio, err := runner.ParsePriority(cfg.Llama.Priority)
	if err != nil {
		return err
	}
	runners, err := llamacpp.Discover(dir, llamacpp.Config{
		ContextSize: cfg.Llama.ContextSize,
		Threads:     cfg.Llama.Threads,
		GPULayers:   cfg.Llama.GPULayers,
		Priority:    prio,
		Logger:      &log,
	})
	if err != nil {
		return fmt.Errorf("discover models: %w", err)
	}
	for _, r := range runners {
		if err := reg.Register(r, r.Describe()); err != nil {
			return err
		}
		log.Debug().Str("runner", r.Describe().Name).Msg("registered local runner")
	}
	return nil
}

func registerRemotes(reg *registry.Registry, cfg config.Config, log zerolog.Logger) error {
	for i, rc := range cfg.Remotes {
		mode := openai.ModeChat
		if rc.Mode != "" {
			m, err := openai.ParseMode(rc.Mode)
			if err != nil {
				return fmt.Errorf("remotes[%d]: %w", i, err)
			}
			mode = m
		}
		prio, err := runner.ParsePriority(rc.Priority)
		if err != nil {
			return fmt.Errorf("remotes[%d]: %w", i, err)
		}
		r, err := openai.New(openai.Config{
			Name:           rc.Name,
			Mode:           mode,
			BaseURL:        rc.BaseURL,
			APIKey:         rc.Key(),
			Model:          rc.Model,
			Vision:         rc.Vision,
			Priority:       prio,
			Voice:          rc.Voice,
			Format:         rc.Format,
			RequestTimeout: rc.RequestTimeout(),
			Logger:         &log,
		})
		if err != nil {
			return fmt.Errorf("remotes[%d]: %w", i, err)
		}
		if err := reg.Register(r, r.Describe().WithEnabled(!rc.Disabled)); err != nil {
			return err
		}
		log.Debug().Str("runner", r.Describe().Name).Str("mode", string(mode)).Msg("registered remote runner")
	}
	return nil
}

// reload re-reads the config file and publishes a new settings snapshot.
// Runner registrations are fixed for the life of the process.
func (e *engine) reload(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	es, err := cfg.EngineSettings()
	if err != nil {
		return err
	}
	v := e.store.Replace(es)
	e.log.Info().Uint64("version", v).Msg("settings reloaded")
	return nil
}

// service adapts the engine to the HTTP surface.
type service struct {
	*coordinator.Coordinator
	mgr *manager.Manager
}

func (e *engine) service() service { return service{Coordinator: e.coord, mgr: e.mgr} }

func (s service) ListRunners() []types.RunnerInfo { return s.mgr.ListRunners() }
func (s service) Ready() bool                     { return s.mgr.Ready() }

func (s service) Status() types.StatusResponse {
	st := s.mgr.Status()
	st.ActiveSessions = s.Active()
	return st
}
