package monitor

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dbh.report/internal/lidar"
	"github.com/banshee-data/dbh.report/internal/monitoring"
)

// HTMLRenderer writes an interactive go-echarts page.
type HTMLRenderer struct {
	Path string
	Band lidar.HeightBand
	// AssetsHost overrides where the echarts scripts load from; empty uses
	// the go-echarts default CDN.
	AssetsHost string
}

// NewHTMLRenderer returns a renderer that writes an interactive chart to path.
func NewHTMLRenderer(path string, band lidar.HeightBand) *HTMLRenderer {
	return &HTMLRenderer{Path: path, Band: band}
}

// Render implements Renderer.
func (r *HTMLRenderer) Render(points []lidar.Point2D, model lidar.CircleModel) error {
	data := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	outline := CircleOutline(model, outlineSegments)
	ring := make([]opts.ScatterData, 0, len(outline))
	for _, p := range outline {
		ring = append(ring, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	centre := []opts.ScatterData{{Name: "center", Value: []interface{}{model.CenterX, model.CenterY}}}

	vp := squareViewport(points, model)
	initOpts := opts.Initialization{PageTitle: "DBH Circle Fit", Width: "900px", Height: "900px"}
	if r.AssetsHost != "" {
		initOpts.AssetsHost = r.AssetsHost
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{
			Title:    PlotTitle(r.Band),
			Subtitle: fmt.Sprintf("points=%d center=(%.3f, %.3f) DBH=%.5f m", len(points), model.CenterX, model.CenterY, model.DBH()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Left: "left", Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Min: vp.minX, Max: vp.maxX, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: vp.minY, Max: vp.maxY, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("Data Points", data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "grey"}))
	scatter.AddSeries("Fitted Circle", ring,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "green"}))
	scatter.AddSeries("Circle Center", centre,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "green"}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := os.WriteFile(r.Path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", r.Path, err)
	}
	monitoring.Logf("wrote circle fit chart to %s", r.Path)
	return nil
}
