package lidar

import (
	"fmt"

	"github.com/banshee-data/dbh.report/internal/monitoring"
)

// PipelineConfig is the explicit configuration for EstimateDBH.
type PipelineConfig struct {
	Band HeightBand
	Fit  FitOptions
}

// DefaultPipelineConfig returns the breast-height band with default
// solver settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Band: DefaultHeightBand(),
		Fit:  DefaultFitOptions(),
	}
}

// Result is the outcome of a DBH measurement.
type Result struct {
	// Circle is the fitted stem cross-section.
	Circle CircleModel
	// DBH is Circle.DBH(), kept for reporting.
	DBH float64

	// GroundOffset is the elevation subtracted during normalization.
	GroundOffset float64
	// MaxHeight is the highest normalized elevation; the lowest is zero.
	MaxHeight float64

	TotalPoints int
	// Slice holds the horizontal projections of the selected points.
	Slice []Point2D
	Band  HeightBand

	Fit *CircleFit
}

// EstimateDBH runs the full measurement on cloud: normalize, select the
// height band, fit the circle. Each stage checks its own preconditions so
// the returned error names the stage that failed.
func EstimateDBH(cloud PointCloud, cfg PipelineConfig) (*Result, error) {
	if err := cfg.Band.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	normalized, err := NormalizeHeights(cloud)
	if err != nil {
		return nil, fmt.Errorf("normalize heights: %w", err)
	}
	return EstimateNormalizedDBH(normalized, cfg)
}

// EstimateNormalizedDBH selects the height band from an already normalized
// cloud and fits the circle.
func EstimateNormalizedDBH(normalized NormalizedPointCloud, cfg PipelineConfig) (*Result, error) {
	if err := cfg.Band.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	selector := NewHeightBandSelector(cfg.Band)
	slice, err := selector.Select(normalized)
	if err != nil {
		return nil, fmt.Errorf("select height band: %w", err)
	}
	processed, kept, below, above := selector.Stats()
	monitoring.Logf("height band %s: kept %d of %d points (%d below, %d above)", cfg.Band, kept, processed, below, above)

	fit, err := FitCircle(slice, cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("fit circle to %d points: %w", len(slice), err)
	}

	_, maxZ := normalized.HeightRange()
	return &Result{
		Circle:       fit.Model,
		DBH:          fit.Model.DBH(),
		GroundOffset: normalized.Offset(),
		MaxHeight:    maxZ,
		TotalPoints:  normalized.Len(),
		Slice:        slice,
		Band:         cfg.Band,
		Fit:          fit,
	}, nil
}
