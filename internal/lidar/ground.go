package lidar

import (
	"fmt"
	"math"

	"github.com/banshee-data/dbh.report/internal/monitoring"
)

// Breast-height band defaults, metres above the lowest return.
const (
	DefaultHeightBandLow  = 1.35
	DefaultHeightBandHigh = 1.38
)

// NormalizeHeights translates the cloud along Z so that its lowest return
// sits at zero. X and Y are copied unchanged. The source cloud is not
// modified.
func NormalizeHeights(cloud PointCloud) (NormalizedPointCloud, error) {
	if len(cloud) == 0 {
		return NormalizedPointCloud{}, ErrEmptyInput
	}

	for i, p := range cloud {
		if math.IsNaN(p.Z) || math.IsInf(p.Z, 0) {
			return NormalizedPointCloud{}, fmt.Errorf("%w: %g at point %d", ErrNonFiniteElevation, p.Z, i)
		}
	}

	minZ, maxZ := cloud.ZRange()

	points := make(PointCloud, len(cloud))
	for i, p := range cloud {
		points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z - minZ}
	}

	n := NormalizedPointCloud{points: points, offset: minZ, maxZ: maxZ - minZ}
	monitoring.Logf("adjusted height range: %g to %g m", 0.0, n.maxZ)
	return n, nil
}

// HeightBand is an open elevation interval (Low, High). Both bounds are
// exclusive.
type HeightBand struct {
	Low  float64
	High float64
}

// DefaultHeightBand returns the 1.35-1.38 m breast-height band.
func DefaultHeightBand() HeightBand {
	return HeightBand{Low: DefaultHeightBandLow, High: DefaultHeightBandHigh}
}

// Contains reports whether Low < z < High.
func (b HeightBand) Contains(z float64) bool {
	return z > b.Low && z < b.High
}

// Validate checks that the band is a non-empty interval.
func (b HeightBand) Validate() error {
	if math.IsNaN(b.Low) || math.IsNaN(b.High) || math.IsInf(b.Low, 0) || math.IsInf(b.High, 0) {
		return fmt.Errorf("height band bounds must be finite, got (%g, %g)", b.Low, b.High)
	}
	if b.Low >= b.High {
		return fmt.Errorf("height band low %g must be below high %g", b.Low, b.High)
	}
	return nil
}

// String formats the band the way it is shown in plot titles.
func (b HeightBand) String() string {
	return fmt.Sprintf("%g-%gm", b.Low, b.High)
}

// HeightBandSelector extracts the horizontal cross-section of a normalized
// cloud inside a HeightBand.
type HeightBandSelector struct {
	Band HeightBand

	// Statistics from the most recent Select call.
	pointsProcessed    int64
	pointsInBand       int64
	pointsBelowFloor   int64
	pointsAboveCeiling int64
}

// NewHeightBandSelector constructs a selector for band.
func NewHeightBandSelector(band HeightBand) *HeightBandSelector {
	return &HeightBandSelector{Band: band}
}

// DefaultHeightBandSelector returns a selector for the breast-height band.
func DefaultHeightBandSelector() *HeightBandSelector {
	return NewHeightBandSelector(DefaultHeightBand())
}

// Select returns the XY projection of every point with Low < z < High, in
// input order. Points on either boundary are excluded. An empty selection
// is reported as ErrInsufficientData so that no fit is attempted on it.
func (s *HeightBandSelector) Select(cloud NormalizedPointCloud) ([]Point2D, error) {
	s.ResetStats()

	var out []Point2D
	for i := 0; i < cloud.Len(); i++ {
		p := cloud.At(i)
		s.pointsProcessed++

		switch {
		case s.Band.Contains(p.Z):
			s.pointsInBand++
			out = append(out, p.XY())
		case p.Z >= s.Band.High:
			s.pointsAboveCeiling++
		default:
			s.pointsBelowFloor++
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: band %s, %d points examined", ErrInsufficientData, s.Band, s.pointsProcessed)
	}
	return out, nil
}

// Stats returns the counters from the most recent Select call.
func (s *HeightBandSelector) Stats() (processed, kept, belowFloor, aboveCeiling int64) {
	return s.pointsProcessed, s.pointsInBand, s.pointsBelowFloor, s.pointsAboveCeiling
}

// ResetStats clears the statistics counters.
func (s *HeightBandSelector) ResetStats() {
	s.pointsProcessed = 0
	s.pointsInBand = 0
	s.pointsBelowFloor = 0
	s.pointsAboveCeiling = 0
}
