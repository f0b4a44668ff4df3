package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.HeightBandLow == nil || *cfg.HeightBandLow != 1.35 {
		t.Errorf("Expected HeightBandLow 1.35, got %v", cfg.HeightBandLow)
	}
	if cfg.HeightBandHigh == nil || *cfg.HeightBandHigh != 1.38 {
		t.Errorf("Expected HeightBandHigh 1.38, got %v", cfg.HeightBandHigh)
	}
	if cfg.RetryPerturbed == nil || *cfg.RetryPerturbed {
		t.Errorf("Expected RetryPerturbed false, got %v", cfg.RetryPerturbed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if diff := cmp.Diff(lidar.DefaultHeightBand(), cfg.HeightBand()); diff != "" {
		t.Errorf("HeightBand mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(lidar.DefaultFitOptions(), cfg.FitOptions()); diff != "" {
		t.Errorf("FitOptions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(lidar.DefaultPipelineConfig(), cfg.PipelineConfig()); diff != "" {
		t.Errorf("PipelineConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
  "height_band_low": 1.25,
  "height_band_high": 1.40,
  "max_iterations": 250,
  "retry_perturbed": true
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	band := cfg.HeightBand()
	if band.Low != 1.25 || band.High != 1.40 {
		t.Errorf("HeightBand() = %+v, want {1.25 1.4}", band)
	}
	opts := cfg.FitOptions()
	if opts.MaxIterations != 250 {
		t.Errorf("MaxIterations = %d, want 250", opts.MaxIterations)
	}
	if !opts.RetryPerturbed {
		t.Error("RetryPerturbed = false, want true")
	}
	// Omitted fields fall back to defaults.
	if opts.FunctionTolerance != 1e-8 {
		t.Errorf("FunctionTolerance = %g, want 1e-8", opts.FunctionTolerance)
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "tuning.json", `{"max_iterations": }`, "parse config JSON"},
		{"unknown field", "tuning.json", `{"noise_relative": 0.04}`, "unknown field"},
		{"inverted band", "tuning.json", `{"height_band_low": 1.5, "height_band_high": 1.4}`, "must be below"},
		{"band low above default high", "tuning.json", `{"height_band_low": 2.0}`, "must be below"},
		{"negative band", "tuning.json", `{"height_band_low": -1, "height_band_high": 1}`, "non-negative"},
		{"zero iterations", "tuning.json", `{"max_iterations": 0}`, "max_iterations"},
		{"damping not growing", "tuning.json", `{"damping_increase": 1}`, "damping factors"},
		{"collinearity too large", "tuning.json", `{"collinearity_tolerance": 1.5}`, "collinearity_tolerance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "stat config file") {
		t.Errorf("expected stat error, got %v", err)
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	body := `{"max_iterations": 100` + strings.Repeat(" ", 1024*1024) + `}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadTuningConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestMustLoadDefaultConfig_MatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultTuningConfig(), cfg); diff != "" {
		t.Errorf("config/tuning.defaults.json drifted from built-in defaults (-want +got):\n%s", diff)
	}
}
