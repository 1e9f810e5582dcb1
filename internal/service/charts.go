package service

import (
	"context"

	"reportbot/internal/apperrors"
	"reportbot/internal/report"
	"reportbot/internal/school"
)

// StudentStatsReader supplies the chart data.
type StudentStatsReader interface {
	AverageStudentsByCounty(ctx context.Context, limit int) ([]school.CountyStudents, error)
}

// BarRenderer draws the average-students chart.
type BarRenderer interface {
	AverageStudents(stats []school.CountyStudents) ([]byte, error)
}

// Chart is a rendered image with its caption.
type Chart struct {
	PNG     []byte
	Caption string
}

// ChartService builds charts from the database.
type ChartService struct {
	repo      StudentStatsReader
	renderer  BarRenderer
	formatter *report.Formatter
	limit     int
}

// NewChartService creates a chart service.
func NewChartService(repo StudentStatsReader, renderer BarRenderer, formatter *report.Formatter, cfg Config) *ChartService {
	return &ChartService{
		repo:      repo,
		renderer:  renderer,
		formatter: formatter,
		limit:     cfg.withDefaults().CountyLimit,
	}
}

// AverageStudents charts average students per school for the largest
// counties. An empty database yields a no-data error.
func (s *ChartService) AverageStudents(ctx context.Context) (Chart, error) {
	stats, err := s.repo.AverageStudentsByCounty(ctx, s.limit)
	if err != nil {
		return Chart{}, apperrors.Internal("charts.average_students", err)
	}
	png, err := s.renderer.AverageStudents(stats)
	if err != nil {
		return Chart{}, err
	}
	return Chart{PNG: png, Caption: s.formatter.ChartCaption(stats)}, nil
}
