// Command dbh estimates the diameter at breast height of a single tree stem
// from a LiDAR point cloud.
//
// Usage:
//
//	dbh [flags] <file.las|file.xyz>
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/dbh.report/internal/config"
	"github.com/banshee-data/dbh.report/internal/db"
	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/lidar/monitor"
	"github.com/banshee-data/dbh.report/internal/lidar/parse"
	"github.com/banshee-data/dbh.report/internal/lidar/storage/sqlite"
	"github.com/banshee-data/dbh.report/internal/monitoring"
	"github.com/banshee-data/dbh.report/internal/units"
	"github.com/banshee-data/dbh.report/internal/version"
)

const (
	exitOK               = 0
	exitFailure          = 1
	exitUsage            = 2
	exitInsufficientData = 3
	exitFitFailure       = 4
)

// Config holds the parsed command line.
type Config struct {
	InputPath   string
	ConfigPath  string
	Units       string
	PlotPath    string
	HTMLPath    string
	DBPath      string
	Notes       string
	JSON        bool
	Verbose     bool
	ShowVersion bool
}

// report is the -json output.
type report struct {
	Source        string  `json:"source"`
	DBH           float64 `json:"dbh"`
	Units         string  `json:"units"`
	DBHMeters     float64 `json:"dbh_m"`
	CenterX       float64 `json:"center_x"`
	CenterY       float64 `json:"center_y"`
	RadiusMeters  float64 `json:"radius_m"`
	HeightMin     float64 `json:"height_min_m"`
	HeightMax     float64 `json:"height_max_m"`
	GroundOffset  float64 `json:"ground_offset_m"`
	TotalPoints   int     `json:"total_points"`
	SlicePoints   int     `json:"slice_points"`
	Iterations    int     `json:"iterations"`
	RMSResidual   float64 `json:"rms_residual_m"`
	MeasurementID string  `json:"measurement_id,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("dbh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to tuning JSON (defaults to built-in values)")
	fs.StringVar(&cfg.Units, "units", units.Meters, "Units for the reported DBH ("+units.GetValidLengthUnitsString()+")")
	fs.StringVar(&cfg.PlotPath, "plot", "", "Write a PNG plot of the fitted slice to this path")
	fs.StringVar(&cfg.HTMLPath, "html", "", "Write an interactive HTML chart of the fitted slice to this path")
	fs.StringVar(&cfg.DBPath, "db", "", "Append the measurement to this SQLite database")
	fs.StringVar(&cfg.Notes, "notes", "", "Free-text note stored with the measurement (requires -db)")
	fs.BoolVar(&cfg.JSON, "json", false, "Print the result as JSON")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Log pipeline diagnostics to stderr")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Print version information and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dbh [flags] <point-cloud file (.las, .xyz, .txt, .csv)>\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowVersion {
		return cfg, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one input file, got %d arguments", fs.NArg())
	}
	cfg.InputPath = fs.Arg(0)
	if !units.IsValidLength(cfg.Units) {
		return nil, fmt.Errorf("invalid -units %q: must be one of %s", cfg.Units, units.GetValidLengthUnitsString())
	}
	if cfg.Notes != "" && cfg.DBPath == "" {
		return nil, errors.New("-notes requires -db")
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "dbh: %v\n", err)
		return exitUsage
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version.String("dbh"))
		return exitOK
	}

	prevLogf := monitoring.Logf
	defer monitoring.SetLogger(prevLogf)
	if cfg.Verbose {
		monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)
	} else {
		monitoring.SetLogger(nil)
	}

	tuning := config.EmptyTuningConfig()
	if cfg.ConfigPath != "" {
		if tuning, err = config.LoadTuningConfig(cfg.ConfigPath); err != nil {
			fmt.Fprintf(stderr, "dbh: %v\n", err)
			return exitUsage
		}
	}
	pipeline := tuning.PipelineConfig()
	pipeline.Fit.Verbose = cfg.Verbose

	cloud, err := parse.ReadPointCloud(cfg.InputPath)
	if err != nil {
		fmt.Fprintf(stderr, "dbh: %v\n", err)
		return exitFailure
	}

	normalized, err := lidar.NormalizeHeights(cloud)
	if err != nil {
		fmt.Fprintf(stderr, "dbh: normalize heights: %v\n", err)
		return exitCode(err)
	}
	if !cfg.JSON {
		minZ, maxZ := normalized.HeightRange()
		fmt.Fprintf(stdout, "Adjusted height range: %g to %g meters\n", minZ, maxZ)
	}

	res, err := lidar.EstimateNormalizedDBH(normalized, pipeline)
	if err != nil {
		fmt.Fprintf(stderr, "dbh: %v\n", err)
		return exitCode(err)
	}

	var renderers []monitor.Renderer
	if cfg.PlotPath != "" {
		renderers = append(renderers, monitor.NewPNGRenderer(cfg.PlotPath, res.Band))
	}
	if cfg.HTMLPath != "" {
		renderers = append(renderers, monitor.NewHTMLRenderer(cfg.HTMLPath, res.Band))
	}
	for _, r := range renderers {
		if err := r.Render(res.Slice, res.Circle); err != nil {
			fmt.Fprintf(stderr, "dbh: %v\n", err)
			return exitFailure
		}
	}

	var measurementID string
	if cfg.DBPath != "" {
		if measurementID, err = storeMeasurement(cfg, res); err != nil {
			fmt.Fprintf(stderr, "dbh: %v\n", err)
			return exitFailure
		}
	}

	dbh := units.ConvertLength(res.DBH, cfg.Units)
	if cfg.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report{
			Source:        cfg.InputPath,
			DBH:           dbh,
			Units:         cfg.Units,
			DBHMeters:     res.DBH,
			CenterX:       res.Circle.CenterX,
			CenterY:       res.Circle.CenterY,
			RadiusMeters:  res.Circle.Radius,
			HeightMin:     0,
			HeightMax:     res.MaxHeight,
			GroundOffset:  res.GroundOffset,
			TotalPoints:   res.TotalPoints,
			SlicePoints:   len(res.Slice),
			Iterations:    res.Fit.Iterations,
			RMSResidual:   res.Fit.RMSResidual,
			MeasurementID: measurementID,
		}); err != nil {
			fmt.Fprintf(stderr, "dbh: encode result: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	fmt.Fprintf(stdout, "Calculated DBH: %.5f %s\n", dbh, units.LengthLabel(cfg.Units))
	if measurementID != "" {
		fmt.Fprintf(stdout, "Stored measurement %s in %s\n", measurementID, cfg.DBPath)
	}
	return exitOK
}

func storeMeasurement(cfg *Config, res *lidar.Result) (string, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return "", err
	}
	defer database.Close()

	m := sqlite.NewMeasurement(cfg.InputPath, res)
	m.Notes = cfg.Notes
	if err := sqlite.NewMeasurementStore(database.DB).Insert(m); err != nil {
		return "", err
	}
	return m.MeasurementID, nil
}

// exitCode maps pipeline errors to the documented exit statuses.
func exitCode(err error) int {
	switch {
	case errors.Is(err, lidar.ErrInsufficientData):
		return exitInsufficientData
	case errors.Is(err, lidar.ErrFitConvergence):
		return exitFitFailure
	default:
		return exitFailure
	}
}
