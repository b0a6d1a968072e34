package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kingrea/ideaboard/internal/board"
	"github.com/kingrea/ideaboard/internal/config"
	"github.com/kingrea/ideaboard/internal/idea"
	"github.com/kingrea/ideaboard/internal/logbook"
	"github.com/kingrea/ideaboard/internal/logging"
	"github.com/kingrea/ideaboard/internal/pipeline"
	"github.com/kingrea/ideaboard/internal/store"
	"github.com/kingrea/ideaboard/internal/transition"
)

// runtime is everything one command invocation opens against a project.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	journal  *logbook.Logbook
	registry *pipeline.Registry
	store    store.Store
}

func (c *cli) open(ctx context.Context) (*runtime, error) {
	dir, err := c.projectDir()
	if err != nil {
		return nil, err
	}
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	if err := config.InitDir(dir); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", config.BoardDir, err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(dir)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}
	rt.journal, err = logbook.New(cfg.JournalPath())
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.registry = pipeline.Default()
	if path := cfg.PipelinesFile(); path != "" {
		rt.registry, err = pipeline.LoadRegistryFile(path)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = st
	logger.Printf("opened %s store for project %q", cfg.Project.Store.Backend, cfg.ProjectScope())
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.Store, error) {
	opts := []store.Option{store.WithLogger(logger)}
	switch cfg.Project.Store.Backend {
	case config.BackendMemory:
		return store.NewMemory(demoIdeas(cfg.ProjectScope()), opts...), nil
	case config.BackendFile:
		fs, err := store.OpenFile(cfg.StorePath(), opts...)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.BackendRedis:
		redisCfg := cfg.Project.Store.Redis
		rs, err := store.OpenRedis(ctx, store.RedisConfig{
			Address:   redisCfg.Address,
			Password:  redisCfg.Password,
			DB:        redisCfg.DB,
			KeyPrefix: redisCfg.KeyPrefix,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Project.Store.Backend)
	}
}

// board builds a board over the current store contents.
func (rt *runtime) board(ctx context.Context, key pipeline.Key) (*board.Board, error) {
	if key == "" {
		key = pipeline.Key(rt.cfg.DefaultPipeline())
	}
	b, err := board.New(transition.New(rt.registry), rt.store,
		board.WithLogbook(rt.journal),
		board.WithPipeline(key),
	)
	if err != nil {
		return nil, err
	}
	ideas, err := rt.store.List(ctx, rt.cfg.ProjectScope())
	if err != nil {
		return nil, err
	}
	b.Merge(ideas)
	return b, nil
}

func (rt *runtime) find(ctx context.Context, id string) (idea.Idea, error) {
	ideas, err := rt.store.List(ctx, rt.cfg.ProjectScope())
	if err != nil {
		return idea.Idea{}, err
	}
	idx := idea.Index(ideas, id)
	if idx < 0 {
		return idea.Idea{}, fmt.Errorf("%w: idea %s", store.ErrNotFound, id)
	}
	return ideas[idx], nil
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.logger != nil {
		errs = append(errs, rt.logger.Close())
	}
	return errors.Join(errs...)
}

// demoIdeas seeds the in-memory backend so a fresh board has something to drag.
func demoIdeas(project string) []idea.Idea {
	return []idea.Idea{
		{ID: "demo-dark-mode", ProjectID: project, Category: idea.CategoryFeature, Stage: "Brainstorm", Title: "Dark mode"},
		{ID: "demo-export", ProjectID: project, Category: idea.CategoryFeature, Stage: "Planning", Title: "CSV export"},
		{ID: "demo-pricing", ProjectID: project, Category: idea.CategoryProduct, Title: "Usage-based pricing"},
		{ID: "demo-webinar", ProjectID: project, Category: idea.CategoryMarketing, Stage: "Strategy", Title: "Launch webinar"},
		{ID: "demo-teaser", ProjectID: project, Category: idea.CategorySocial, SocialSubtype: idea.SubtypePost, Title: "Teaser clip"},
		{
			ID:            "demo-summer",
			ProjectID:     project,
			Category:      idea.CategorySocial,
			SocialSubtype: idea.SubtypeCampaign,
			Stage:         "Planning",
			Title:         "Summer launch",
			Concept:       `{"phases":[{"id":"tease","name":"Tease","durationValue":2,"durationUnit":"Weeks"},{"id":"launch","name":"Launch","durationValue":10,"durationUnit":"Days"}],"channels":[{"channelId":"instagram","baseFrequencyValue":3,"baseFrequencyUnit":"Posts/Week","phaseOverrides":[{"phaseId":"launch","frequencyValue":1,"frequencyUnit":"Posts/Day"}]}],"platforms":["instagram"]}`,
		},
		{ID: "demo-caching", ProjectID: project, Category: idea.CategoryOptimization, Title: "Cache search results"},
	}
}
