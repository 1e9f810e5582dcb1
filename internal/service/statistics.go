// Package service implements the bot's use cases on top of the repositories.
package service

import (
	"context"
	"log/slog"
	"time"

	"reportbot/internal/apperrors"
	"reportbot/internal/report"
	"reportbot/internal/school"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const summaryKey = "summary"

// SchoolReader is the read side of the school repository.
type SchoolReader interface {
	AverageExpenditureInCounties(ctx context.Context, counties []string, minExpenditure float64) ([]school.ExpenditureStats, error)
	TopMathSchoolByStudentRange(ctx context.Context, minStudents, maxStudents int) (*school.MathSchool, error)
	AverageStudentsByCounty(ctx context.Context, limit int) ([]school.CountyStudents, error)
	Summary(ctx context.Context) (school.Summary, error)
}

// StatisticsService produces the standard reports.
type StatisticsService struct {
	repo      SchoolReader
	formatter *report.Formatter
	cfg       Config
	cache     *cache.Cache
	now       func() time.Time
	logger    *slog.Logger
}

// NewStatisticsService creates a statistics service.
func NewStatisticsService(repo SchoolReader, formatter *report.Formatter, cfg Config) *StatisticsService {
	cfg = cfg.withDefaults()
	return &StatisticsService{
		repo:      repo,
		formatter: formatter,
		cfg:       cfg,
		cache:     cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		now:       time.Now,
		logger:    slog.With("component", "statistics"),
	}
}

// ExpenditureReport renders expenditure statistics for the configured counties.
func (s *StatisticsService) ExpenditureReport(ctx context.Context) (string, error) {
	stats, err := s.repo.AverageExpenditureInCounties(ctx, s.cfg.ExpenditureCounties, s.cfg.MinExpenditure)
	if err != nil {
		return "", apperrors.Internal("statistics.expenditure", err)
	}
	return s.formatter.Expenditure(s.cfg.ExpenditureCounties, s.cfg.MinExpenditure, stats), nil
}

// MathSchoolsReport renders the best math school of every configured range.
// Ranges are queried concurrently; the first failure cancels the rest.
func (s *StatisticsService) MathSchoolsReport(ctx context.Context) (string, error) {
	sections := make([]report.MathSection, len(s.cfg.StudentRanges))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range s.cfg.StudentRanges {
		g.Go(func() error {
			top, err := s.repo.TopMathSchoolByStudentRange(gctx, r.Min, r.Max)
			if err != nil {
				return err
			}
			sections[i] = report.MathSection{Range: r, School: top}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", apperrors.Internal("statistics.math_schools", err)
	}
	return s.formatter.MathSchools(sections), nil
}

// StudentStats returns student statistics for the largest counties.
func (s *StatisticsService) StudentStats(ctx context.Context) ([]school.CountyStudents, error) {
	stats, err := s.repo.AverageStudentsByCounty(ctx, s.cfg.CountyLimit)
	if err != nil {
		return nil, apperrors.Internal("statistics.student_stats", err)
	}
	return stats, nil
}

// StudentStatsReport renders StudentStats in full.
func (s *StatisticsService) StudentStatsReport(ctx context.Context) (string, error) {
	stats, err := s.StudentStats(ctx)
	if err != nil {
		return "", err
	}
	return s.formatter.CountyStudents(stats), nil
}

// StudentStatsBrief renders the first top counties of StudentStats.
func (s *StatisticsService) StudentStatsBrief(ctx context.Context, top int) (string, error) {
	stats, err := s.StudentStats(ctx)
	if err != nil {
		return "", err
	}
	return s.formatter.CountyStudentsBrief(stats, top), nil
}

// Summary returns the database summary, cached for the configured TTL.
func (s *StatisticsService) Summary(ctx context.Context) (school.Summary, error) {
	if cached, ok := s.cache.Get(summaryKey); ok {
		return cached.(school.Summary), nil
	}
	sum, err := s.repo.Summary(ctx)
	if err != nil {
		return school.Summary{}, apperrors.Internal("statistics.summary", err)
	}
	s.cache.SetDefault(summaryKey, sum)
	return sum, nil
}

// SummaryReport renders Summary.
func (s *StatisticsService) SummaryReport(ctx context.Context) (string, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return "", err
	}
	return s.formatter.Summary(sum), nil
}

// SummaryYAML renders Summary as a YAML document.
func (s *StatisticsService) SummaryYAML(ctx context.Context) ([]byte, error) {
	sum, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}
	out, err := report.ExportYAML(sum, s.now())
	if err != nil {
		return nil, apperrors.Internal("statistics.export", err)
	}
	return out, nil
}

// Invalidate drops cached results. Call it after the data changed.
func (s *StatisticsService) Invalidate() {
	s.cache.Flush()
	s.logger.Debug("Statistics cache invalidated")
}
