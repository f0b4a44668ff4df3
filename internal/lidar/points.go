// Package lidar measures tree stems from terrestrial LiDAR scans.
//
// The measurement is a strict forward pipeline: heights are normalized to
// the lowest return, a thin band of returns near breast height is selected
// and projected onto the horizontal plane, and a circle is fitted to that
// slice. The stem diameter at breast height (DBH) is twice the fitted radius.
package lidar

import "math"

// Point3D is a single LiDAR return in the scan's coordinate frame (metres).
type Point3D struct {
	X, Y, Z float64
}

// Point2D is the horizontal projection of a Point3D.
type Point2D struct {
	X, Y float64
}

// XY drops the elevation of p.
func (p Point3D) XY() Point2D {
	return Point2D{X: p.X, Y: p.Y}
}

// PointCloud is the ordered sequence of returns produced by a reader.
// Order carries no meaning for the measurement.
type PointCloud []Point3D

// ZRange returns the lowest and highest elevation in the cloud.
// An empty cloud returns (+Inf, -Inf).
func (c PointCloud) ZRange() (minZ, maxZ float64) {
	minZ, maxZ = math.Inf(1), math.Inf(-1)
	for _, p := range c {
		if p.Z < minZ {
			minZ = p.Z
		}
		if p.Z > maxZ {
			maxZ = p.Z
		}
	}
	return minZ, maxZ
}

// NormalizedPointCloud is a PointCloud translated along Z so that its lowest
// return sits at zero. It is produced only by NormalizeHeights and is never
// modified afterwards.
type NormalizedPointCloud struct {
	points PointCloud
	offset float64
	maxZ   float64
}

// Len returns the number of points.
func (n NormalizedPointCloud) Len() int { return len(n.points) }

// At returns the i-th normalized point.
func (n NormalizedPointCloud) At(i int) Point3D { return n.points[i] }

// Offset returns the elevation that was subtracted from every point,
// i.e. the minimum Z of the source cloud.
func (n NormalizedPointCloud) Offset() float64 { return n.offset }

// HeightRange returns the normalized elevation range. The lower bound is
// always zero.
func (n NormalizedPointCloud) HeightRange() (minZ, maxZ float64) {
	return 0, n.maxZ
}

// Points returns a copy of the normalized points.
func (n NormalizedPointCloud) Points() PointCloud {
	out := make(PointCloud, len(n.points))
	copy(out, n.points)
	return out
}
