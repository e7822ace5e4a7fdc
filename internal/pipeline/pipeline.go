// Package pipeline orchestrates the CVI workflow steps and the GeoJSON
// artifacts they exchange. Each step reads its inputs from a run's output
// directory and writes its artifact back there, so steps can also run
// standalone from the CLI against an existing directory.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hartis-org/cvi-workflow/internal/aoi"
	"github.com/hartis-org/cvi-workflow/internal/config"
	"github.com/hartis-org/cvi-workflow/internal/erosion"
	"github.com/hartis-org/cvi-workflow/internal/geocode"
	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

// Artifact filenames within a run's output directory. Downstream steps
// locate their inputs by these exact names.
const (
	CoastlineFile = "coastline.geojson"
	AOIFile       = "aoi.json"
	TransectsFile = "transects.geojson"
	CVIFile       = "transects_with_cvi_equal.geojson"
)

// DimensionFile returns the annotated artifact name for one dimension.
func DimensionFile(dim string) string {
	return fmt.Sprintf("transects_with_%s.geojson", dim)
}

// externalDimensions are the dimensions whose raw values arrive from files
// sampled out of band rather than from a service the pipeline calls itself.
var externalDimensions = []string{"land_cover", "slope", "elevation"}

// ValuesPaths names the external per-transect value files. An empty path
// skips that dimension; its scores stay absent and the composite step
// treats them as no data.
type ValuesPaths struct {
	LandCover string
	Slope     string
	Elevation string
}

// Path returns the values file configured for a dimension name.
func (v ValuesPaths) Path(dim string) string {
	switch dim {
	case "land_cover":
		return v.LandCover
	case "slope":
		return v.Slope
	case "elevation":
		return v.Elevation
	default:
		return ""
	}
}

// Pipeline owns the configuration, clients, and store shared by every step.
type Pipeline struct {
	cfg        *config.Config
	thresholds *config.ThresholdsConfig
	store      store.Store
	nominatim  geocode.Client
	overpass   geocode.CoastlineClient
	erosion    erosion.Client
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	thresholds *config.ThresholdsConfig,
	st store.Store,
	nominatim geocode.Client,
	overpass geocode.CoastlineClient,
	erosionClient erosion.Client,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		thresholds: thresholds,
		store:      st,
		nominatim:  nominatim,
		overpass:   overpass,
		erosion:    erosionClient,
	}
}

// NewFromConfig wires a Pipeline with live clients built from configuration.
func NewFromConfig(cfg *config.Config, thresholds *config.ThresholdsConfig, st store.Store) *Pipeline {
	nominatimOpts := []geocode.Option{geocode.WithBaseURL(cfg.Geocode.NominatimURL)}
	overpassOpts := []geocode.OverpassOption{geocode.WithOverpassURL(cfg.Geocode.OverpassURL)}
	if cfg.Geocode.RatePerSec > 0 {
		nominatimOpts = append(nominatimOpts, geocode.WithRateLimit(cfg.Geocode.RatePerSec))
		overpassOpts = append(overpassOpts, geocode.WithOverpassRateLimit(cfg.Geocode.RatePerSec))
	}

	return New(
		cfg,
		thresholds,
		st,
		geocode.NewClient(cfg.Geocode.UserAgent, nominatimOpts...),
		geocode.NewOverpassClient(cfg.Geocode.UserAgent, overpassOpts...),
		erosion.NewWFSClient(
			erosion.WithWFSURL(cfg.Erosion.WFSURL),
			erosion.WithTypeName(cfg.Erosion.TypeName),
		),
	)
}

// Run executes the full pipeline for one area, recording progress and the
// final outcome in the store. The returned run carries the final status,
// per-step results, and error. Coastline extraction, transect generation,
// and the composite step are fatal when they fail; per-dimension score
// attachment is not, since missing scores simply classify as no data.
func (p *Pipeline) Run(ctx context.Context, entry aoi.Entry, values ValuesPaths) (*model.Run, error) {
	log := zap.L().With(zap.String("area", entry.Query()))
	log.Info("pipeline: starting run")

	params := model.RunParams{
		SpacingM:        p.cfg.Sampling.SpacingM,
		TransectLengthM: p.cfg.Sampling.TransectLengthM,
		MaxCoastM:       p.cfg.Sampling.MaxCoastM,
		MaxAttempts:     p.cfg.Fetch.MaxAttempts,
		Catalog:         p.cfg.AOI.Catalog,
	}
	run, err := p.store.CreateRun(ctx, entry.Query(), params)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	outDir := filepath.Join(p.cfg.Output.Dir, run.ID)
	result := &model.RunResult{Area: entry.Query(), OutputDir: outDir}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: update run status", zap.Error(statusErr))
		}
		run.Status = status
	}

	// Step tracking helper with a mutex, since the attach steps run
	// concurrently.
	var stepsMu sync.Mutex
	trackStep := func(name string, fn func() (*model.StepResult, error)) error {
		start := time.Now()
		step, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if step == nil {
			step = &model.StepResult{}
		}
		step.Name = name
		step.DurationMS = duration

		if fnErr != nil {
			step.Status = model.StepStatusFailed
			step.Error = fnErr.Error()
			log.Error("pipeline: step failed",
				zap.String("step", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			step.Status = model.StepStatusComplete
			log.Info("pipeline: step complete",
				zap.String("step", name),
				zap.Int64("duration_ms", duration),
			)
		}

		stepsMu.Lock()
		result.Steps = append(result.Steps, *step)
		stepsMu.Unlock()
		return fnErr
	}

	// ===== Extract coastline =====
	setStatus(model.RunStatusExtracting)

	var extract *ExtractResult
	if err := trackStep("extract_coastline", func() (*model.StepResult, error) {
		ex, exErr := p.ExtractCoastline(ctx, entry, outDir)
		if exErr != nil {
			return nil, exErr
		}
		extract = ex
		return &model.StepResult{Artifact: CoastlineFile}, nil
	}); err != nil {
		return p.fail(ctx, run, result, err)
	}
	result.Area = extract.Query
	result.BBox = &extract.BBox
	result.Zoom = extract.Zoom

	// ===== Generate transects =====
	setStatus(model.RunStatusSampling)

	var sample *TransectsResult
	if err := trackStep("generate_transects", func() (*model.StepResult, error) {
		tr, trErr := p.GenerateTransects(ctx, outDir)
		if trErr != nil {
			return nil, trErr
		}
		sample = tr
		return &model.StepResult{Artifact: TransectsFile}, nil
	}); err != nil {
		return p.fail(ctx, run, result, err)
	}
	result.Transects = sample.Count
	result.ProcessedKM = sample.ProcessedKM

	// ===== Attach dimension scores (independent artifacts, in parallel) =====
	setStatus(model.RunStatusScoring)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_ = trackStep("attach_erosion", func() (*model.StepResult, error) {
			if attachErr := p.AttachErosion(gCtx, outDir); attachErr != nil {
				return nil, attachErr
			}
			return &model.StepResult{Artifact: DimensionFile("erosion")}, nil
		})
		return nil
	})

	for _, dim := range externalDimensions {
		valuesPath := values.Path(dim)
		if valuesPath == "" {
			log.Info("pipeline: no values file, skipping dimension",
				zap.String("dimension", dim))
			continue
		}
		g.Go(func() error {
			_ = trackStep("attach_"+dim, func() (*model.StepResult, error) {
				if attachErr := p.AttachScores(gCtx, outDir, dim, valuesPath); attachErr != nil {
					return nil, attachErr
				}
				return &model.StepResult{Artifact: DimensionFile(dim)}, nil
			})
			return nil
		})
	}

	// Attach errors are recorded per step and do not fail the run: the
	// composite treats their missing scores as no data.
	_ = g.Wait()

	// ===== Composite index =====
	var compute *ComputeResult
	if err := trackStep("compute_cvi", func() (*model.StepResult, error) {
		c, computeErr := p.ComputeCVI(ctx, outDir)
		if computeErr != nil {
			return nil, computeErr
		}
		compute = c
		return &model.StepResult{Artifact: CVIFile}, nil
	}); err != nil {
		return p.fail(ctx, run, result, err)
	}
	result.MeanCVI = compute.MeanCVI

	// Finalize.
	run.Status = model.RunStatusComplete
	run.Result = result
	if saveErr := p.store.UpdateRunResult(ctx, run.ID, result); saveErr != nil {
		log.Warn("pipeline: save run result", zap.Error(saveErr))
	}

	log.Info("pipeline: run complete",
		zap.Int("transects", result.Transects),
		zap.Float64("processed_km", result.ProcessedKM),
		zap.String("output_dir", outDir),
	)
	return run, nil
}

// fail marks the run failed in the store and returns the step error. The
// partial result stays attached to the run for inspection.
func (p *Pipeline) fail(ctx context.Context, run *model.Run, result *model.RunResult, err error) (*model.Run, error) {
	run.Status = model.RunStatusFailed
	run.Error = err.Error()
	run.Result = result
	if storeErr := p.store.UpdateRunError(ctx, run.ID, err.Error()); storeErr != nil {
		zap.L().Warn("pipeline: record run failure",
			zap.String("run_id", run.ID),
			zap.Error(storeErr),
		)
	}
	return run, err
}
