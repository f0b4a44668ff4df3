package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/lidar/parse"
)

func TestRun_WritesReadableScan(t *testing.T) {
	for _, name := range []string{"scan.las", "scan.xyz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			var out, errOut bytes.Buffer

			code := run([]string{"-out", path, "-radius", "0.2", "-arc", "180", "-ground", "40"}, &out, &errOut)
			require.Equal(t, 0, code, errOut.String())
			assert.True(t, strings.HasPrefix(out.String(), "wrote 240 points"), out.String())

			cloud, err := parse.ReadPointCloud(path)
			require.NoError(t, err)
			res, err := lidar.EstimateDBH(cloud, lidar.DefaultPipelineConfig())
			require.NoError(t, err)
			assert.InDelta(t, 0.4, res.DBH, 0.03)
		})
	}
}

func TestRun_BadFlags(t *testing.T) {
	tests := [][]string{
		{"-radius", "0"},
		{"-arc", "400"},
		{"extra"},
		{"-stem-points", "-1"},
	}
	for _, args := range tests {
		var out, errOut bytes.Buffer
		assert.Equal(t, 2, run(args, &out, &errOut), "args %v", args)
	}
}
