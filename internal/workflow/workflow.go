// Package workflow runs the CVI pipeline as a Temporal workflow. The
// activities delegate to internal/pipeline, so a Temporal run produces the
// same artifacts and run record as a local one, with per-step retries and
// history handled by the server.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/hartis-org/cvi-workflow/internal/aoi"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/pipeline"
)

// TaskQueue is the default queue the worker and starters share.
const TaskQueue = "cvi-pipeline"

// scoreDimensions are the dimensions fed by external values files.
var scoreDimensions = []string{"land_cover", "slope", "elevation"}

// RunInput names the area and the external values files for one workflow
// execution.
type RunInput struct {
	Name    string
	Country string
	Values  pipeline.ValuesPaths
}

// Entry converts the input to a catalog entry.
func (in RunInput) Entry() aoi.Entry {
	return aoi.Entry{Name: in.Name, Country: in.Country}
}

// RunRecord identifies the run row and its artifact directory, created once
// and threaded through every activity.
type RunRecord struct {
	ID  string
	Dir string
}

// RunOutput is the workflow result.
type RunOutput struct {
	RunID     string
	Status    model.RunStatus
	Area      string
	Transects int
	MeanCVI   *float64
	OutputDir string
}

// CVIWorkflow executes the pipeline steps as activities: extraction and
// transect generation sequentially, the per-dimension attaches in parallel,
// then the composite. Attach failures are recorded but do not fail the
// workflow; their scores classify as no data downstream.
func CVIWorkflow(ctx workflow.Context, input RunInput) (*RunOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting CVI workflow", "area", input.Entry().Query())

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var run RunRecord
	if err := workflow.ExecuteActivity(ctx, "CreateRun", input).Get(ctx, &run); err != nil {
		return nil, err
	}

	out := &RunOutput{RunID: run.ID, OutputDir: run.Dir}
	result := model.RunResult{OutputDir: run.Dir}

	var steps []model.StepResult
	track := func(name, artifact string, start time.Time, stepErr error) {
		step := model.StepResult{
			Name:       name,
			DurationMS: workflow.Now(ctx).Sub(start).Milliseconds(),
		}
		if stepErr != nil {
			step.Status = model.StepStatusFailed
			step.Error = stepErr.Error()
		} else {
			step.Status = model.StepStatusComplete
			step.Artifact = artifact
		}
		steps = append(steps, step)
	}

	fail := func(stepErr error) (*RunOutput, error) {
		result.Steps = steps
		if ferr := workflow.ExecuteActivity(ctx, "FailRun", run.ID, stepErr.Error()).Get(ctx, nil); ferr != nil {
			logger.Warn("recording run failure failed", "error", ferr)
		}
		out.Status = model.RunStatusFailed
		return out, stepErr
	}

	start := workflow.Now(ctx)
	var extract pipeline.ExtractResult
	if err := workflow.ExecuteActivity(ctx, "ExtractCoastline", run, input).Get(ctx, &extract); err != nil {
		track("extract_coastline", "", start, err)
		return fail(err)
	}
	track("extract_coastline", pipeline.CoastlineFile, start, nil)
	out.Area = extract.Query
	result.Area = extract.Query
	result.BBox = &extract.BBox
	result.Zoom = extract.Zoom

	start = workflow.Now(ctx)
	var sample pipeline.TransectsResult
	if err := workflow.ExecuteActivity(ctx, "GenerateTransects", run).Get(ctx, &sample); err != nil {
		track("generate_transects", "", start, err)
		return fail(err)
	}
	track("generate_transects", pipeline.TransectsFile, start, nil)
	result.Transects = sample.Count
	result.ProcessedKM = sample.ProcessedKM

	// The dimension artifacts are independent; run their activities in
	// parallel and collect outcomes afterwards.
	type attachStep struct {
		name     string
		artifact string
		future   workflow.Future
	}
	phaseStart := workflow.Now(ctx)
	attaches := []attachStep{{
		name:     "attach_erosion",
		artifact: pipeline.DimensionFile("erosion"),
		future:   workflow.ExecuteActivity(ctx, "AttachErosion", run),
	}}
	for _, dim := range scoreDimensions {
		path := input.Values.Path(dim)
		if path == "" {
			logger.Info("no values file, skipping dimension", "dimension", dim)
			continue
		}
		attaches = append(attaches, attachStep{
			name:     "attach_" + dim,
			artifact: pipeline.DimensionFile(dim),
			future:   workflow.ExecuteActivity(ctx, "AttachScores", run, dim, path),
		})
	}
	for _, a := range attaches {
		if err := a.future.Get(ctx, nil); err != nil {
			logger.Warn("attach step failed, its scores become no data",
				"step", a.name, "error", err)
			track(a.name, "", phaseStart, err)
			continue
		}
		track(a.name, a.artifact, phaseStart, nil)
	}

	start = workflow.Now(ctx)
	var compute pipeline.ComputeResult
	if err := workflow.ExecuteActivity(ctx, "ComputeCVI", run).Get(ctx, &compute); err != nil {
		track("compute_cvi", "", start, err)
		return fail(err)
	}
	track("compute_cvi", pipeline.CVIFile, start, nil)
	result.MeanCVI = compute.MeanCVI
	result.Steps = steps

	if err := workflow.ExecuteActivity(ctx, "CompleteRun", run, result).Get(ctx, nil); err != nil {
		logger.Warn("saving run result failed", "error", err)
	}

	out.Status = model.RunStatusComplete
	out.Transects = sample.Count
	out.MeanCVI = compute.MeanCVI
	logger.Info("CVI workflow complete",
		"run_id", run.ID, "transects", sample.Count)
	return out, nil
}
