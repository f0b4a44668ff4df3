package lidar

import (
	"math"
	"math/rand"
)

// SyntheticStemScan generates a single-stem scan for testing and demos:
// scattered returns over a height range plus a ring of stem-surface
// returns at one elevation.
type SyntheticStemScan struct {
	// Stem cross-section at StemHeight (metres above ground).
	CenterX, CenterY float64
	Radius           float64
	StemHeight       float64
	StemPoints       int
	// Arc of the stem visible to the scanner, radians.
	ArcStart, ArcEnd float64
	// Standard deviation of radial noise on stem returns, metres.
	Noise float64

	// Background returns spread uniformly over [0, MaxHeight] and a
	// BackgroundExtent square around the stem.
	BackgroundPoints int
	MaxHeight        float64
	BackgroundExtent float64
	// Background returns falling inside ExcludeBand are lifted above it so
	// only stem returns populate the band.
	ExcludeBand HeightBand

	// GroundElevation is added to every Z to emulate survey coordinates.
	GroundElevation float64

	rng *rand.Rand
}

// NewSyntheticStemScan returns a generator with a 0.12 m stem centred at
// (1, 1) and the given seed.
func NewSyntheticStemScan(seed int64) *SyntheticStemScan {
	return &SyntheticStemScan{
		CenterX:          1.0,
		CenterY:          1.0,
		Radius:           0.12,
		StemHeight:       1.36,
		StemPoints:       40,
		ArcStart:         0,
		ArcEnd:           2 * math.Pi,
		Noise:            0.002,
		BackgroundPoints: 200,
		MaxHeight:        2.0,
		BackgroundExtent: 3.0,
		ExcludeBand:      DefaultHeightBand(),
		rng:              rand.New(rand.NewSource(seed)),
	}
}

// StemRing returns StemPoints points on the configured arc with radial noise.
func (g *SyntheticStemScan) StemRing() []Point2D {
	pts := make([]Point2D, g.StemPoints)
	span := g.ArcEnd - g.ArcStart
	for i := range pts {
		theta := g.ArcStart + span*float64(i)/float64(g.StemPoints)
		r := g.Radius + g.rng.NormFloat64()*g.Noise
		pts[i] = Point2D{
			X: g.CenterX + r*math.Cos(theta),
			Y: g.CenterY + r*math.Sin(theta),
		}
	}
	return pts
}

// Cloud generates the full scan. Background returns come first, stem
// returns last. The lowest background return is pinned to ground level.
func (g *SyntheticStemScan) Cloud() PointCloud {
	cloud := make(PointCloud, 0, g.BackgroundPoints+g.StemPoints)
	half := g.BackgroundExtent / 2
	for i := 0; i < g.BackgroundPoints; i++ {
		z := g.rng.Float64() * g.MaxHeight
		if i == 0 {
			z = 0
		}
		// Background returns are deliberately kept 1 cm clear of ExcludeBand
		// so every point in the band belongs to the stem ring. A uniform
		// background would leave a few stray returns in the slice.
		if z > g.ExcludeBand.Low-0.01 && z < g.ExcludeBand.High+0.01 {
			z = g.ExcludeBand.High + 0.05
		}
		cloud = append(cloud, Point3D{
			X: g.CenterX + (g.rng.Float64()*2-1)*half,
			Y: g.CenterY + (g.rng.Float64()*2-1)*half,
			Z: z + g.GroundElevation,
		})
	}
	for _, p := range g.StemRing() {
		cloud = append(cloud, Point3D{X: p.X, Y: p.Y, Z: g.StemHeight + g.GroundElevation})
	}
	return cloud
}
