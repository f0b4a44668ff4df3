package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/monitoring"
)

var (
	pointColor  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	circleColor = color.RGBA{G: 128, A: 255}
)

// PNGRenderer draws the measurement to a PNG (or any format plot.Save
// accepts from the file extension).
type PNGRenderer struct {
	Path string
	Band lidar.HeightBand
	// Size is the edge length of the square image.
	Size vg.Length
}

// NewPNGRenderer returns a renderer writing an 8 inch square image to path.
func NewPNGRenderer(path string, band lidar.HeightBand) *PNGRenderer {
	return &PNGRenderer{Path: path, Band: band, Size: 8 * vg.Inch}
}

// Render implements Renderer.
func (r *PNGRenderer) Render(points []lidar.Point2D, model lidar.CircleModel) error {
	p := plot.New()
	p.Title.Text = PlotTitle(r.Band)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	data := make(plotter.XYs, len(points))
	for i, pt := range points {
		data[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	scatter, err := plotter.NewScatter(data)
	if err != nil {
		return fmt.Errorf("build point scatter: %w", err)
	}
	scatter.GlyphStyle.Color = pointColor
	scatter.GlyphStyle.Radius = vg.Points(1)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}

	centre, err := plotter.NewScatter(plotter.XYs{{X: model.CenterX, Y: model.CenterY}})
	if err != nil {
		return fmt.Errorf("build centre marker: %w", err)
	}
	centre.GlyphStyle.Color = circleColor
	centre.GlyphStyle.Radius = vg.Points(5)
	centre.GlyphStyle.Shape = draw.CircleGlyph{}

	outline := CircleOutline(model, outlineSegments)
	ring := make(plotter.XYs, len(outline))
	for i, pt := range outline {
		ring[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	line, err := plotter.NewLine(ring)
	if err != nil {
		return fmt.Errorf("build circle outline: %w", err)
	}
	line.Color = circleColor
	line.Width = vg.Points(1.5)

	p.Add(scatter, centre, line)
	p.Legend.Add("Data Points", scatter)
	p.Legend.Add("Circle Center", centre)
	p.Legend.Add("Fitted Circle", line)
	p.Legend.Top = false
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = 10

	vp := squareViewport(points, model)
	p.X.Min, p.X.Max = vp.minX, vp.maxX
	p.Y.Min, p.Y.Max = vp.minY, vp.maxY

	if dir := filepath.Dir(r.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	if err := p.Save(r.Size, r.Size, r.Path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	monitoring.Logf("wrote circle fit plot to %s", r.Path)
	return nil
}
