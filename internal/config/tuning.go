package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the measurement parameters. Every field is optional;
// the Get* methods fall back to the built-in defaults for anything the
// JSON leaves out.
type TuningConfig struct {
	// Height band, metres above the lowest return. Both bounds are exclusive.
	HeightBandLow  *float64 `json:"height_band_low,omitempty"`
	HeightBandHigh *float64 `json:"height_band_high,omitempty"`

	// Levenberg-Marquardt solver
	MaxIterations         *int     `json:"max_iterations,omitempty"`
	FunctionTolerance     *float64 `json:"function_tolerance,omitempty"`
	ParameterTolerance    *float64 `json:"parameter_tolerance,omitempty"`
	InitialDamping        *float64 `json:"initial_damping,omitempty"`
	DampingIncrease       *float64 `json:"damping_increase,omitempty"`
	DampingDecrease       *float64 `json:"damping_decrease,omitempty"`
	CollinearityTolerance *float64 `json:"collinearity_tolerance,omitempty"`
	RetryPerturbed        *bool    `json:"retry_perturbed,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	fit := lidar.DefaultFitOptions()
	return &TuningConfig{
		HeightBandLow:         ptrFloat64(lidar.DefaultHeightBandLow),
		HeightBandHigh:        ptrFloat64(lidar.DefaultHeightBandHigh),
		MaxIterations:         ptrInt(fit.MaxIterations),
		FunctionTolerance:     ptrFloat64(fit.FunctionTolerance),
		ParameterTolerance:    ptrFloat64(fit.ParameterTolerance),
		InitialDamping:        ptrFloat64(fit.InitialDamping),
		DampingIncrease:       ptrFloat64(fit.DampingIncrease),
		DampingDecrease:       ptrFloat64(fit.DampingDecrease),
		CollinearityTolerance: ptrFloat64(fit.CollinearityTolerance),
		RetryPerturbed:        ptrBool(fit.RetryPerturbed),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptyTuningConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/lidar/parse/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the set fields and their combination with defaults.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*float64{
		"height_band_low":        c.HeightBandLow,
		"height_band_high":       c.HeightBandHigh,
		"function_tolerance":     c.FunctionTolerance,
		"parameter_tolerance":    c.ParameterTolerance,
		"initial_damping":        c.InitialDamping,
		"damping_increase":       c.DampingIncrease,
		"damping_decrease":       c.DampingDecrease,
		"collinearity_tolerance": c.CollinearityTolerance,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite, got %v", name, *v)
		}
	}

	if c.HeightBandLow != nil && *c.HeightBandLow < 0 {
		return fmt.Errorf("height_band_low must be non-negative, got %f", *c.HeightBandLow)
	}
	if err := c.HeightBand().Validate(); err != nil {
		return err
	}

	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if c.CollinearityTolerance != nil && (*c.CollinearityTolerance < 0 || *c.CollinearityTolerance >= 1) {
		return fmt.Errorf("collinearity_tolerance must be in [0, 1), got %g", *c.CollinearityTolerance)
	}
	return c.FitOptions().Validate()
}

// HeightBand returns the configured selection band.
func (c *TuningConfig) HeightBand() lidar.HeightBand {
	return lidar.HeightBand{Low: c.GetHeightBandLow(), High: c.GetHeightBandHigh()}
}

// FitOptions returns the solver settings with defaults filled in.
func (c *TuningConfig) FitOptions() lidar.FitOptions {
	return lidar.FitOptions{
		MaxIterations:         c.GetMaxIterations(),
		FunctionTolerance:     c.GetFunctionTolerance(),
		ParameterTolerance:    c.GetParameterTolerance(),
		InitialDamping:        c.GetInitialDamping(),
		DampingIncrease:       c.GetDampingIncrease(),
		DampingDecrease:       c.GetDampingDecrease(),
		CollinearityTolerance: c.GetCollinearityTolerance(),
		RetryPerturbed:        c.GetRetryPerturbed(),
	}
}

// PipelineConfig combines HeightBand and FitOptions.
func (c *TuningConfig) PipelineConfig() lidar.PipelineConfig {
	return lidar.PipelineConfig{Band: c.HeightBand(), Fit: c.FitOptions()}
}

func (c *TuningConfig) GetHeightBandLow() float64 {
	if c.HeightBandLow == nil {
		return lidar.DefaultHeightBandLow
	}
	return *c.HeightBandLow
}

func (c *TuningConfig) GetHeightBandHigh() float64 {
	if c.HeightBandHigh == nil {
		return lidar.DefaultHeightBandHigh
	}
	return *c.HeightBandHigh
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return lidar.DefaultFitOptions().MaxIterations
	}
	return *c.MaxIterations
}

// GetFunctionTolerance returns the relative cost-reduction threshold.
func (c *TuningConfig) GetFunctionTolerance() float64 {
	if c.FunctionTolerance == nil {
		return lidar.DefaultFitOptions().FunctionTolerance
	}
	return *c.FunctionTolerance
}

// GetParameterTolerance returns the relative step-size threshold.
func (c *TuningConfig) GetParameterTolerance() float64 {
	if c.ParameterTolerance == nil {
		return lidar.DefaultFitOptions().ParameterTolerance
	}
	return *c.ParameterTolerance
}

func (c *TuningConfig) GetInitialDamping() float64 {
	if c.InitialDamping == nil {
		return lidar.DefaultFitOptions().InitialDamping
	}
	return *c.InitialDamping
}

func (c *TuningConfig) GetDampingIncrease() float64 {
	if c.DampingIncrease == nil {
		return lidar.DefaultFitOptions().DampingIncrease
	}
	return *c.DampingIncrease
}

func (c *TuningConfig) GetDampingDecrease() float64 {
	if c.DampingDecrease == nil {
		return lidar.DefaultFitOptions().DampingDecrease
	}
	return *c.DampingDecrease
}

// GetCollinearityTolerance returns the eigenvalue ratio below which a
// slice is treated as a line.
func (c *TuningConfig) GetCollinearityTolerance() float64 {
	if c.CollinearityTolerance == nil {
		return lidar.DefaultFitOptions().CollinearityTolerance
	}
	return *c.CollinearityTolerance
}

// GetRetryPerturbed reports whether a failed fit is retried once from a
// shifted starting guess. Off by default.
func (c *TuningConfig) GetRetryPerturbed() bool {
	if c.RetryPerturbed == nil {
		return false
	}
	return *c.RetryPerturbed
}
