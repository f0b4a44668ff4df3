// Package monitor renders DBH measurements for inspection: the height-band
// slice, the fitted centre and the fitted circle outline.
package monitor

import (
	"fmt"
	"math"

	"github.com/banshee-data/dbh.report/internal/lidar"
)

// Renderer is a visualization sink for a single measurement.
type Renderer interface {
	Render(points []lidar.Point2D, model lidar.CircleModel) error
}

// outlineSegments is the number of chords used to draw the fitted circle.
const outlineSegments = 180

// PlotTitle is the chart title for a measurement taken in band.
func PlotTitle(band lidar.HeightBand) string {
	return fmt.Sprintf("Circle Fitting at %s Height using Levenberg–Marquardt Algorithm", band)
}

// CircleOutline samples n+1 points around the circle, closing the loop.
func CircleOutline(model lidar.CircleModel, n int) []lidar.Point2D {
	if n < 3 {
		n = 3
	}
	out := make([]lidar.Point2D, n+1)
	for i := 0; i <= n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		out[i] = lidar.Point2D{
			X: model.CenterX + model.Radius*math.Cos(theta),
			Y: model.CenterY + model.Radius*math.Sin(theta),
		}
	}
	return out
}

// viewport is a square region containing every point and the full circle,
// so circles render round.
type viewport struct {
	minX, maxX, minY, maxY float64
}

func squareViewport(points []lidar.Point2D, model lidar.CircleModel) viewport {
	minX, maxX := model.CenterX-model.Radius, model.CenterX+model.Radius
	minY, maxY := model.CenterY-model.Radius, model.CenterY+model.Radius
	for _, p := range points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	half := math.Max(maxX-minX, maxY-minY) / 2
	if half <= 0 || math.IsNaN(half) {
		half = 0.5
	}
	half *= 1.1
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	return viewport{minX: cx - half, maxX: cx + half, minY: cy - half, maxY: cy + half}
}

var (
	_ Renderer = (*PNGRenderer)(nil)
	_ Renderer = (*HTMLRenderer)(nil)
)
