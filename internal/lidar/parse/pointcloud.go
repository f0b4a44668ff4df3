// Package parse reads and writes the point cloud formats accepted by the
// DBH tools: ASPRS LAS (point formats 0-3) and plain-text XYZ.
package parse

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/lidario"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

var (
	// ErrFileRead is returned when the input cannot be opened or read.
	ErrFileRead = errors.New("cannot read point cloud file")
	// ErrFormat is returned when the input is readable but not a valid
	// point cloud.
	ErrFormat = errors.New("malformed point cloud")
)

var lasSignature = []byte("LASF")

// maxXYZLine bounds a single text record.
const maxXYZLine = 64 * 1024

// ReadPointCloud loads the file at path, choosing the decoder from its
// extension. Only X, Y and Z are kept.
func ReadPointCloud(path string) (lidar.PointCloud, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las":
		return ReadLAS(path)
	case ".xyz", ".txt", ".csv", ".pts":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		defer f.Close()
		cloud, err := ReadXYZ(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cloud, nil
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
		}
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrFormat, filepath.Ext(path))
	}
}

// ReadLAS decodes the point records of a LAS file.
func ReadLAS(path string) (lidar.PointCloud, error) {
	if err := checkLASSignature(path); err != nil {
		return nil, err
	}

	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		if lf != nil {
			lf.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}
	defer lf.Close()

	cloud := make(lidar.PointCloud, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: point %d: %v", ErrFormat, path, i, err)
		}
		data := p.PointData()
		cloud = append(cloud, lidar.Point3D{X: data.X, Y: data.Y, Z: data.Z})
	}
	return cloud, nil
}

func checkLASSignature(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	defer f.Close()

	sig := make([]byte, len(lasSignature))
	if _, err := io.ReadFull(f, sig); err != nil {
		return fmt.Errorf("%w: %s: file too short for a LAS header", ErrFormat, path)
	}
	if !bytes.Equal(sig, lasSignature) {
		return fmt.Errorf("%w: %s: missing LASF signature", ErrFormat, path)
	}
	return nil
}

// ReadXYZ parses whitespace, comma or semicolon separated records of at
// least three numeric columns. Extra columns are ignored. Blank lines and
// lines starting with '#' or "//" are skipped, and a single non-numeric
// header row is tolerated before the first record.
func ReadXYZ(r io.Reader) (lidar.PointCloud, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxXYZLine)

	var cloud lidar.PointCloud
	lineNo := 0
	headerSeen := false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.FieldsFunc(line, isXYZSeparator)
		if len(cloud) == 0 && !headerSeen && isHeaderRow(fields) {
			headerSeen = true
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: expected at least 3 columns, got %d", ErrFormat, lineNo, len(fields))
		}
		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: column %d: %v", ErrFormat, lineNo, i+1, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d: column %d is not finite", ErrFormat, lineNo, i+1)
			}
			xyz[i] = v
		}
		cloud = append(cloud, lidar.Point3D{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	return cloud, nil
}

func isXYZSeparator(r rune) bool {
	return r == ',' || r == ';' || r == ' ' || r == '\t'
}

func isHeaderRow(fields []string) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			return false
		}
	}
	return true
}
