// Package chart renders statistics as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"log/slog"

	"reportbot/internal/apperrors"
	"reportbot/internal/config"
	"reportbot/internal/school"

	gochart "github.com/wcharczuk/go-chart/v2"
)

// Config controls the image size.
type Config struct {
	Width      int // default: 1200
	Height     int // default: 600
	BarWidth   int // default: 60
	BarSpacing int // default: 40
}

// LoadConfig loads chart configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		Width:  src.Int("chart.width", 1200),
		Height: src.Int("chart.height", 600),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1200
	}
	if c.Height <= 0 {
		c.Height = 600
	}
	if c.BarWidth <= 0 {
		c.BarWidth = 60
	}
	if c.BarSpacing <= 0 {
		c.BarSpacing = 40
	}
	return c
}

// Renderer draws bar charts.
type Renderer struct {
	cfg    Config
	logger *slog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	return &Renderer{
		cfg:    cfg.withDefaults(),
		logger: slog.With("component", "chart"),
	}
}

// AverageStudents renders average students per school for each county.
func (r *Renderer) AverageStudents(stats []school.CountyStudents) ([]byte, error) {
	if len(stats) == 0 {
		return nil, apperrors.NoData("chart", "There is no student data to chart. Load data with /load first.")
	}

	bars := make([]gochart.Value, 0, len(stats))
	top := 0.0
	for _, s := range stats {
		bars = append(bars, gochart.Value{Value: s.AvgStudents, Label: s.County})
		top = max(top, s.AvgStudents)
	}
	if top == 0 {
		top = 1
	}

	// Widen the canvas when the bars would not fit.
	width := max(r.cfg.Width, len(bars)*(r.cfg.BarWidth+r.cfg.BarSpacing)+120)

	graph := gochart.BarChart{
		Title:      "Average students per school by county",
		Width:      width,
		Height:     r.cfg.Height,
		BarWidth:   r.cfg.BarWidth,
		BarSpacing: r.cfg.BarSpacing,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 60},
		},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	r.logger.Debug("Chart rendered", "bars", len(bars), "bytes", buf.Len())
	return buf.Bytes(), nil
}
