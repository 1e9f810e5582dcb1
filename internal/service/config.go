package service

import (
	"log/slog"
	"reportbot/internal/config"
	"reportbot/internal/school"
	"time"
)

// Config holds the parameters of the standard reports.
type Config struct {
	ExpenditureCounties []string              // counties in the expenditure report
	MinExpenditure      float64               // schools at or below this are ignored (default: 10)
	StudentRanges       []school.StudentRange // one math section per range
	CountyLimit         int                   // counties in student statistics and the chart (default: 10)
	CacheTTL            time.Duration         // lifetime of the cached summary (default: 1m)
	DataPath            string                // CSV file loaded when no path is given
}

// DefaultCounties are the counties of the expenditure report.
var DefaultCounties = []string{"Fresno", "Contra Costa", "El Dorado", "Glenn"}

// DefaultStudentRanges are the ranges of the math report.
var DefaultStudentRanges = []school.StudentRange{{Min: 5000, Max: 7500}, {Min: 10000, Max: 11000}}

// LoadConfig loads service configuration. Unparseable student ranges fall
// back to the defaults.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		ExpenditureCounties: src.StringSlice("service.expenditure_counties", DefaultCounties),
		MinExpenditure:      src.Float("service.min_expenditure", 10),
		CountyLimit:         src.Int("service.county_limit", 10),
		CacheTTL:            src.Duration("service.stats_cache_ttl", time.Minute),
		DataPath:            src.String("data.csv_path", "data/schools.csv"),
	}

	ranges, err := school.ParseStudentRanges(src.StringSlice("service.student_ranges", nil))
	if err != nil {
		slog.Warn("Invalid student ranges, using defaults", "component", "service", "error", err)
	}
	cfg.StudentRanges = ranges
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if len(c.ExpenditureCounties) == 0 {
		c.ExpenditureCounties = DefaultCounties
	}
	if c.MinExpenditure <= 0 {
		c.MinExpenditure = 10
	}
	if len(c.StudentRanges) == 0 {
		c.StudentRanges = DefaultStudentRanges
	}
	if c.CountyLimit <= 0 {
		c.CountyLimit = 10
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
	if c.DataPath == "" {
		c.DataPath = "data/schools.csv"
	}
	return c
}
