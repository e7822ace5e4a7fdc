package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusSampling   RunStatus = "sampling"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// StepStatus represents the outcome of a single pipeline step.
type StepStatus string

const (
	StepStatusRunning  StepStatus = "running"
	StepStatusComplete StepStatus = "complete"
	StepStatusFailed   StepStatus = "failed"
)

// BBox is a geographic bounding box in EPSG:4326 degrees.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Span returns the larger of the latitude and longitude extents.
func (b BBox) Span() float64 {
	latDiff := b.MaxLat - b.MinLat
	lonDiff := b.MaxLon - b.MinLon
	if latDiff > lonDiff {
		return latDiff
	}
	return lonDiff
}

// RunParams holds the caller-supplied sampling parameters for one run.
type RunParams struct {
	SpacingM        float64 `json:"spacing_m"`
	TransectLengthM float64 `json:"transect_length_m"`
	MaxCoastM       float64 `json:"max_coast_m"`
	MaxAttempts     int     `json:"max_attempts"`
	Catalog         string  `json:"catalog,omitempty"`
}

// Run represents a single CVI pipeline run over one area of interest.
type Run struct {
	ID        string     `json:"id"`
	Area      string     `json:"area"`
	Status    RunStatus  `json:"status"`
	Params    RunParams  `json:"params"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Area        string       `json:"area"`
	BBox        *BBox        `json:"bbox,omitempty"`
	Zoom        int          `json:"zoom,omitempty"`
	Transects   int          `json:"transects"`
	ProcessedKM float64      `json:"processed_km"`
	MeanCVI     *float64     `json:"mean_cvi,omitempty"`
	OutputDir   string       `json:"output_dir"`
	Steps       []StepResult `json:"steps"`
}

// StepResult records the outcome of one pipeline step within a run.
type StepResult struct {
	Name       string     `json:"name"`
	Status     StepStatus `json:"status"`
	DurationMS int64      `json:"duration_ms"`
	Artifact   string     `json:"artifact,omitempty"`
	Error      string     `json:"error,omitempty"`
}
