package workflow

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hartis-org/cvi-workflow/internal/config"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/pipeline"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

// Activities adapts the pipeline steps and run bookkeeping to Temporal.
// The pipeline owns the step semantics; each activity only adds the
// run-status update the local runner would have made.
type Activities struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Config   *config.Config
}

// CreateRun inserts the run row and names its artifact directory. It runs
// once per workflow; every later activity receives the returned record.
func (a *Activities) CreateRun(ctx context.Context, input RunInput) (RunRecord, error) {
	params := model.RunParams{
		SpacingM:        a.Config.Sampling.SpacingM,
		TransectLengthM: a.Config.Sampling.TransectLengthM,
		MaxCoastM:       a.Config.Sampling.MaxCoastM,
		MaxAttempts:     a.Config.Fetch.MaxAttempts,
		Catalog:         a.Config.AOI.Catalog,
	}
	run, err := a.Store.CreateRun(ctx, input.Entry().Query(), params)
	if err != nil {
		return RunRecord{}, eris.Wrap(err, "workflow: create run")
	}
	return RunRecord{ID: run.ID, Dir: filepath.Join(a.Config.Output.Dir, run.ID)}, nil
}

func (a *Activities) ExtractCoastline(ctx context.Context, run RunRecord, input RunInput) (*pipeline.ExtractResult, error) {
	a.setStatus(ctx, run.ID, model.RunStatusExtracting)
	return a.Pipeline.ExtractCoastline(ctx, input.Entry(), run.Dir)
}

func (a *Activities) GenerateTransects(ctx context.Context, run RunRecord) (*pipeline.TransectsResult, error) {
	a.setStatus(ctx, run.ID, model.RunStatusSampling)
	return a.Pipeline.GenerateTransects(ctx, run.Dir)
}

func (a *Activities) AttachErosion(ctx context.Context, run RunRecord) error {
	a.setStatus(ctx, run.ID, model.RunStatusScoring)
	return a.Pipeline.AttachErosion(ctx, run.Dir)
}

func (a *Activities) AttachScores(ctx context.Context, run RunRecord, dim, valuesPath string) error {
	a.setStatus(ctx, run.ID, model.RunStatusScoring)
	return a.Pipeline.AttachScores(ctx, run.Dir, dim, valuesPath)
}

func (a *Activities) ComputeCVI(ctx context.Context, run RunRecord) (*pipeline.ComputeResult, error) {
	return a.Pipeline.ComputeCVI(ctx, run.Dir)
}

func (a *Activities) CompleteRun(ctx context.Context, run RunRecord, result model.RunResult) error {
	return a.Store.UpdateRunResult(ctx, run.ID, &result)
}

func (a *Activities) FailRun(ctx context.Context, runID, message string) error {
	return a.Store.UpdateRunError(ctx, runID, message)
}

// setStatus is best effort. A status row lagging behind the workflow is
// preferable to failing a step over bookkeeping.
func (a *Activities) setStatus(ctx context.Context, runID string, status model.RunStatus) {
	if err := a.Store.UpdateRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("workflow: update run status",
			zap.String("run_id", runID), zap.Error(err))
	}
}
