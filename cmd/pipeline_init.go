package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/hartis-org/cvi-workflow/internal/config"
	"github.com/hartis-org/cvi-workflow/internal/pipeline"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

// pipelineEnv bundles the open run store with the pipeline built on top of
// it, shared by the step commands, run, and the worker.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close shuts the run store.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config, loads the classification thresholds,
// opens and migrates the run store, and assembles the pipeline. Callers own
// the returned env and should defer Close.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	thresholds, err := config.LoadThresholds(cfg.Thresholds.Path)
	if err != nil {
		return nil, err
	}

	st, err := initStore()
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.NewFromConfig(cfg, thresholds, st),
	}, nil
}

// workDir defaults the artifact directory to the configured output dir.
func workDir(dir string) string {
	if dir != "" {
		return dir
	}
	return cfg.Output.Dir
}
