package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dbh.report/internal/db"
	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/lidar/storage/sqlite"
	"github.com/banshee-data/dbh.report/internal/testutil"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_XYZ(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.xyz")

	code, stdout, stderr := runCLI(t, path)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Adjusted height range: 0 to "), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Calculated DBH: 0.2"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], " meters"), lines[1])
	assert.Empty(t, stderr, "diagnostics should be muted without -verbose")
}

func TestRun_LAS(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.las")

	code, stdout, stderr := runCLI(t, path)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Calculated DBH: ")
}

func TestRun_Units(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.xyz")

	code, stdout, _ := runCLI(t, "-units", "cm", path)
	require.Equal(t, exitOK, code)
	assert.Regexp(t, `Calculated DBH: 2\d\.\d{5} centimeters`, stdout)
}

func TestRun_JSON(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.xyz")

	code, stdout, stderr := runCLI(t, "-json", "-units", "mm", path)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)

	var got report
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, path, got.Source)
	assert.Equal(t, "mm", got.Units)
	assert.InDelta(t, 0.24, got.DBHMeters, 0.02)
	assert.InDelta(t, got.DBHMeters*1000, got.DBH, 1e-9)
	assert.Equal(t, 240, got.TotalPoints)
	assert.Equal(t, 40, got.SlicePoints)
	assert.Empty(t, got.MeasurementID)
}

func TestRun_Verbose(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.xyz")

	code, _, stderr := runCLI(t, "-verbose", path)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "adjusted height range")
	assert.Contains(t, stderr, "circle fit converged")
}

func TestRun_Outputs(t *testing.T) {
	path := testutil.StemScanFixture(t, "stem.xyz")
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "fit.png")
	htmlPath := filepath.Join(dir, "fit.html")
	dbPath := filepath.Join(dir, "dbh.db")

	code, stdout, stderr := runCLI(t,
		"-plot", pngPath, "-html", htmlPath, "-db", dbPath, "-notes", "plot 7", path)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Stored measurement ")

	for _, p := range []string{pngPath, htmlPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0), p)
	}

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	list, err := sqlite.NewMeasurementStore(database.DB).ListBySource(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "plot 7", list[0].Notes)
	assert.InDelta(t, 0.24, list[0].DBHM, 0.02)
}

func TestRun_Config(t *testing.T) {
	// Stem ring at 1.30 m over a single ground return, nothing else.
	gen := lidar.NewSyntheticStemScan(2)
	gen.StemHeight = 1.30
	gen.BackgroundPoints = 0
	cloud := append(lidar.PointCloud{{X: 0, Y: 0, Z: 0}}, gen.Cloud()...)
	path := testutil.WriteCloud(t, "low.xyz", cloud)

	code, _, _ := runCLI(t, path)
	assert.Equal(t, exitInsufficientData, code, "default band should miss a stem at 1.30 m")

	cfgPath := testutil.WriteTempFile(t, "tuning.json", `{"height_band_low": 1.25, "height_band_high": 1.32}`)
	code, stdout, stderr := runCLI(t, "-config", cfgPath, path)
	require.Equal(t, exitOK, code, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Calculated DBH: ")
}

func TestRun_Errors(t *testing.T) {
	noBand := lidar.NewSyntheticStemScan(3)
	noBand.StemHeight = 1.7

	tests := []struct {
		name       string
		args       func(t *testing.T) []string
		wantCode   int
		wantErr    string
		wantStdout string
	}{
		{
			name:     "no arguments",
			args:     func(t *testing.T) []string { return nil },
			wantCode: exitUsage,
			wantErr:  "expected exactly one input file",
		},
		{
			name:     "two arguments",
			args:     func(t *testing.T) []string { return []string{"a.las", "b.las"} },
			wantCode: exitUsage,
			wantErr:  "expected exactly one input file",
		},
		{
			name:     "unknown flag",
			args:     func(t *testing.T) []string { return []string{"-bogus", "a.las"} },
			wantCode: exitUsage,
			wantErr:  "flag provided but not defined",
		},
		{
			name:     "bad units",
			args:     func(t *testing.T) []string { return []string{"-units", "ft", "a.las"} },
			wantCode: exitUsage,
			wantErr:  "invalid -units",
		},
		{
			name:     "notes without db",
			args:     func(t *testing.T) []string { return []string{"-notes", "x", "a.las"} },
			wantCode: exitUsage,
			wantErr:  "-notes requires -db",
		},
		{
			name: "bad config",
			args: func(t *testing.T) []string {
				return []string{"-config", testutil.WriteTempFile(t, "bad.json", `{"max_iterations": 0}`), "a.las"}
			},
			wantCode: exitUsage,
			wantErr:  "max_iterations",
		},
		{
			name:     "missing file",
			args:     func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "absent.las")} },
			wantCode: exitFailure,
			wantErr:  "cannot read point cloud file",
		},
		{
			name:     "malformed file",
			args:     func(t *testing.T) []string { return []string{testutil.WriteTempFile(t, "bad.xyz", "1 2\n")} },
			wantCode: exitFailure,
			wantErr:  "malformed point cloud",
		},
		{
			name:     "empty file",
			args:     func(t *testing.T) []string { return []string{testutil.WriteTempFile(t, "empty.xyz", "")} },
			wantCode: exitFailure,
			wantErr:  "point cloud contains no points",
		},
		{
			name:       "no points in band",
			args:       func(t *testing.T) []string { return []string{testutil.WriteCloud(t, "high.xyz", noBand.Cloud())} },
			wantCode:   exitInsufficientData,
			wantErr:    "no points found in target height range",
			wantStdout: "Adjusted height range: 0 to",
		},
		{
			name: "too few points to fit",
			args: func(t *testing.T) []string {
				return []string{testutil.WriteTempFile(t, "two.xyz", "0 0 0\n1 1 1.36\n1.1 1 1.37\n")}
			},
			wantCode:   exitFitFailure,
			wantErr:    "circle fit did not converge",
			wantStdout: "Adjusted height range: 0 to 1.37 meters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args(t)...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantErr)
			assert.NotContains(t, stdout, "Calculated DBH")
			if tt.wantStdout != "" {
				assert.Contains(t, stdout, tt.wantStdout)
			}
			assert.NotContains(t, stderr, "goroutine", "errors must not print a stack trace")
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "-h")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "Usage: dbh")
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(stdout, "dbh "), stdout)
}
