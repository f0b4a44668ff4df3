// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/lidar/parse"
)

// WriteTempFile writes content to name inside a fresh temp directory and
// returns the full path.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteCloud stores cloud under name in a fresh temp directory, as LAS when
// name ends in .las and as XYZ text otherwise.
func WriteCloud(t *testing.T, name string, cloud lidar.PointCloud) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if strings.EqualFold(filepath.Ext(name), ".las") {
		if err := parse.WriteLAS(path, cloud); err != nil {
			t.Fatalf("write LAS fixture: %v", err)
		}
		return path
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := parse.WriteXYZ(f, cloud); err != nil {
		t.Fatalf("write XYZ fixture: %v", err)
	}
	return path
}

// StemScanFixture writes the default synthetic stem scan (seed 1) to name.
func StemScanFixture(t *testing.T, name string) string {
	t.Helper()
	return WriteCloud(t, name, lidar.NewSyntheticStemScan(1).Cloud())
}
