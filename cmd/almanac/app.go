package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almanac-ai/almanac"
	"github.com/almanac-ai/almanac/internal/config"
	"github.com/almanac-ai/almanac/kb/elevenlabs"
	"github.com/almanac-ai/almanac/observer"
	"github.com/almanac-ai/almanac/plugins/clock"
	"github.com/almanac-ai/almanac/plugins/facts"
	"github.com/almanac-ai/almanac/plugins/news"
	"github.com/almanac-ai/almanac/plugins/notes"
	"github.com/almanac-ai/almanac/plugins/weather"
	"github.com/almanac-ai/almanac/store/postgres"
	"github.com/almanac-ai/almanac/store/sqlite"
)

// app holds everything a command needs, wired once from config.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *almanac.Pipeline
	sync     *almanac.Synchronizer
	facts    almanac.FactStore
	inst     *observer.Instruments
	close    func(context.Context) error
}

// newApp loads config and wires the full pipeline. Missing synchronizer
// credentials fail here, before any plugin could run.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load(rootFlags.configPath)

	level := slog.LevelInfo
	if rootFlags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.Agent.APIKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY not configured (agent.api_key)")
	}
	if cfg.Agent.AgentID == "" {
		return nil, fmt.Errorf("ELEVENLABS_AGENT_ID not configured (agent.agent_id)")
	}

	var closers []func(context.Context) error

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			return nil, fmt.Errorf("observer: %w", err)
		}
		closers = append(closers, shutdown)
	}

	var mapping almanac.MappingStore
	var facts almanac.FactStore
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st := postgres.New(pool)
		if err := st.Init(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		closers = append(closers, func(context.Context) error { pool.Close(); return nil })
		mapping, facts = st, st
	default:
		st := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		if err := st.Init(ctx); err != nil {
			return nil, err
		}
		closers = append(closers, func(context.Context) error { return st.Close() })
		mapping, facts = st, st
	}

	if inst != nil {
		facts = observer.WrapFactStore(facts, inst)
	}

	registry, err := buildRegistry(cfg, inst, facts)
	if err != nil {
		return nil, err
	}

	var kbOpts []elevenlabs.Option
	if cfg.Agent.BaseURL != "" {
		kbOpts = append(kbOpts, elevenlabs.WithBaseURL(cfg.Agent.BaseURL))
	}
	kbOpts = append(kbOpts, elevenlabs.WithLogger(logger))
	var kb almanac.KnowledgeBase = elevenlabs.New(cfg.Agent.APIKey, cfg.Agent.AgentID, kbOpts...)
	if inst != nil {
		kb = observer.WrapKnowledgeBase(kb, inst)
	}

	syncr := almanac.NewSynchronizer(kb, mapping,
		almanac.WithSyncLogger(logger),
		almanac.WithSyncMaxAttempts(cfg.Sync.MaxAttempts),
		almanac.WithSyncBaseDelay(time.Duration(cfg.Sync.BaseDelaySeconds)*time.Second),
		almanac.WithSyncMaxParallel(cfg.Sync.MaxParallel),
	)

	pipeline := almanac.NewPipeline(
		registry,
		almanac.NewRunner(
			almanac.WithMaxParallel(cfg.Runner.MaxParallel),
			almanac.WithPluginTimeout(time.Duration(cfg.Runner.PluginTimeoutSeconds)*time.Second),
			almanac.WithRunnerLogger(logger),
		),
		almanac.NewWriter(cfg.Staging.Dir, almanac.WithWriterLogger(logger)),
		syncr,
		almanac.WithPipelineLogger(logger),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		sync:     syncr,
		facts:    facts,
		inst:     inst,
	}
	a.close = func(ctx context.Context) error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return a, nil
}

// buildRegistry instantiates the enabled plugins. An unusable plugin source
// (e.g. a configured notes directory that cannot be read) is an
// almanac.ErrRegistry and fatal for the run.
func buildRegistry(cfg config.Config, inst *observer.Instruments, factStore almanac.FactStore) (*almanac.Registry, error) {
	registry := almanac.NewRegistry()

	add := func(p almanac.Plugin) error {
		if inst != nil {
			p = observer.WrapPlugin(p, inst)
		}
		return registry.Register(p)
	}

	if cfg.Plugins.Clock.Enabled {
		if err := add(clock.New()); err != nil {
			return nil, err
		}
	}
	if cfg.Plugins.Weather.Enabled {
		var opts []weather.Option
		if err := add(weather.New(cfg.Plugins.Weather.APIKey, cfg.Plugins.Weather.City, opts...)); err != nil {
			return nil, err
		}
	}
	if cfg.Plugins.News.Enabled {
		opts := []news.Option{}
		if cfg.Plugins.News.Category != "" {
			opts = append(opts, news.WithCategory(cfg.Plugins.News.Category))
		}
		if cfg.Plugins.News.ExpandLead {
			opts = append(opts, news.WithLeadArticle())
		}
		if err := add(news.New(cfg.Plugins.News.APIKey, cfg.Plugins.News.Country, opts...)); err != nil {
			return nil, err
		}
	}
	if cfg.Plugins.Facts.Enabled {
		var opts []facts.Option
		if cfg.Plugins.Facts.Limit > 0 {
			opts = append(opts, facts.WithLimit(cfg.Plugins.Facts.Limit))
		}
		if err := add(facts.New(factStore, opts...)); err != nil {
			return nil, err
		}
	}
	if cfg.Plugins.Notes.Enabled {
		p := notes.New(cfg.Plugins.Notes.Dir)
		if err := p.Check(); err != nil {
			return nil, &almanac.ErrRegistry{Source: cfg.Plugins.Notes.Dir, Message: err.Error()}
		}
		if err := add(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
