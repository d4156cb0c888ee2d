package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/causalml-fall25/project-cbsobral/internal/config"
	"github.com/causalml-fall25/project-cbsobral/internal/pipeline"
	"github.com/causalml-fall25/project-cbsobral/internal/store"
)

// pipelineEnv holds the store and pipeline used by the grid, panel, run and
// export commands.
type pipelineEnv struct {
	Store    store.Store // nil when persistence is disabled
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.SectionStore); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline validates the named config section (if any), opens the store
// when a driver is configured and builds the Pipeline. Callers should defer
// env.Close().
func initPipeline(ctx context.Context, section string) (*pipelineEnv, error) {
	if section != "" {
		if err := cfg.Validate(section); err != nil {
			return nil, err
		}
	}

	env := &pipelineEnv{}
	if cfg.Store.Driver != "" {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	p, err := pipeline.New(cfg, env.Store)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Pipeline = p
	return env, nil
}
