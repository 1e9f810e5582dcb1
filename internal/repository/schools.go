// Package repository runs the analytic queries over the school database.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"reportbot/internal/school"
	"reportbot/internal/storage"

	"github.com/doug-martin/goqu/v9"
)

// MinSchoolsPerCounty is the smallest county included in student statistics.
const MinSchoolsPerCounty = 3

var (
	// Tables
	schoolsTable     = goqu.T("schools").As("s")
	countiesTable    = goqu.T("counties").As("c")
	financialsTable  = goqu.T("school_financials").As("f")
	performanceTable = goqu.T("school_performance").As("p")

	// Columns
	school_id       = goqu.I("s.id")
	school_name     = goqu.I("s.name")
	school_county   = goqu.I("s.county_id")
	school_students = goqu.I("s.students")
	county_id       = goqu.I("c.id")
	county_name     = goqu.I("c.name")
	fin_school      = goqu.I("f.school_id")
	fin_expenditure = goqu.I("f.expenditure")
	perf_school     = goqu.I("p.school_id")
	perf_math       = goqu.I("p.math_score")
	perf_read       = goqu.I("p.read_score")
)

// SchoolRepository answers read-only questions about the dataset.
type SchoolRepository struct {
	db     *goqu.Database
	logger *slog.Logger
}

// NewSchoolRepository binds a repository to an open database.
func NewSchoolRepository(db *sql.DB) (*SchoolRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("school repository: nil database")
	}
	return &SchoolRepository{
		db:     goqu.New(storage.Dialect, db),
		logger: slog.With("component", "repository"),
	}, nil
}

// AverageExpenditureInCounties returns expenditure statistics for the given
// counties, counting only schools spending more than minExpenditure. Rows are
// ordered by average expenditure, highest first.
func (r *SchoolRepository) AverageExpenditureInCounties(ctx context.Context, counties []string, minExpenditure float64) ([]school.ExpenditureStats, error) {
	stats := make([]school.ExpenditureStats, 0)
	if len(counties) == 0 {
		return stats, nil
	}

	ds := r.db.From(financialsTable).
		Join(schoolsTable, goqu.On(fin_school.Eq(school_id))).
		Join(countiesTable, goqu.On(school_county.Eq(county_id))).
		Select(
			county_name.As("county_name"),
			goqu.COUNT("*").As("school_count"),
			goqu.AVG(fin_expenditure).As("avg_expenditure"),
			goqu.MIN(fin_expenditure).As("min_expenditure"),
			goqu.MAX(fin_expenditure).As("max_expenditure")).
		Where(
			county_name.In(counties),
			fin_expenditure.Gt(minExpenditure)).
		GroupBy(county_name).
		Order(goqu.I("avg_expenditure").Desc())

	if err := ds.Prepared(true).ScanStructsContext(ctx, &stats); err != nil {
		return nil, fmt.Errorf("average expenditure for counties %v: %w", counties, err)
	}
	r.logger.Debug("Expenditure statistics loaded", "counties", len(counties), "rows", len(stats))
	return stats, nil
}

// TopMathSchoolByStudentRange returns the school with the best math score
// whose student count lies in [minStudents, maxStudents], or nil if none does.
func (r *SchoolRepository) TopMathSchoolByStudentRange(ctx context.Context, minStudents, maxStudents int) (*school.MathSchool, error) {
	ds := r.db.From(schoolsTable).
		Join(performanceTable, goqu.On(school_id.Eq(perf_school))).
		Join(financialsTable, goqu.On(school_id.Eq(fin_school))).
		Join(countiesTable, goqu.On(school_county.Eq(county_id))).
		Select(
			school_id.As("id"),
			school_name.As("school_name"),
			county_name.As("county_name"),
			school_students.As("students"),
			perf_math.As("math_score"),
			goqu.COALESCE(fin_expenditure, 0).As("expenditure")).
		Where(
			school_students.Between(goqu.Range(minStudents, maxStudents)),
			perf_math.IsNotNull()).
		Order(perf_math.Desc()).
		Limit(1)

	var top school.MathSchool
	found, err := ds.Prepared(true).ScanStructContext(ctx, &top)
	if err != nil {
		return nil, fmt.Errorf("top math school for %d-%d students: %w", minStudents, maxStudents, err)
	}
	if !found {
		r.logger.Debug("No school in student range", "min", minStudents, "max", maxStudents)
		return nil, nil
	}
	return &top, nil
}

// AverageStudentsByCounty returns student statistics for counties with at
// least MinSchoolsPerCounty schools, largest counties first.
func (r *SchoolRepository) AverageStudentsByCounty(ctx context.Context, limit int) ([]school.CountyStudents, error) {
	stats := make([]school.CountyStudents, 0)
	if limit <= 0 {
		return stats, nil
	}

	ds := r.db.From(schoolsTable).
		Join(countiesTable, goqu.On(school_county.Eq(county_id))).
		Select(
			county_name.As("county_name"),
			goqu.COUNT("*").As("school_count"),
			goqu.AVG(school_students).As("avg_students"),
			goqu.MIN(school_students).As("min_students"),
			goqu.MAX(school_students).As("max_students"),
			goqu.SUM(school_students).As("total_students")).
		Where(school_students.IsNotNull()).
		GroupBy(county_name).
		Having(goqu.COUNT("*").Gte(MinSchoolsPerCounty)).
		Order(goqu.I("school_count").Desc(), goqu.I("county_name").Asc()).
		Limit(uint(limit))

	if err := ds.Prepared(true).ScanStructsContext(ctx, &stats); err != nil {
		return nil, fmt.Errorf("average students by county: %w", err)
	}
	return stats, nil
}

type studentTotals struct {
	Total int     `db:"total"`
	Avg   float64 `db:"avg"`
	Min   int     `db:"min"`
	Max   int     `db:"max"`
}

type scoreAverages struct {
	Math float64 `db:"math"`
	Read float64 `db:"read"`
}

// Summary describes the whole database. An empty database yields a zero
// Summary.
func (r *SchoolRepository) Summary(ctx context.Context) (school.Summary, error) {
	var sum school.Summary

	if _, err := r.db.From(goqu.T("schools")).
		Select(goqu.COUNT("*")).
		ScanValContext(ctx, &sum.TotalSchools); err != nil {
		return sum, fmt.Errorf("count schools: %w", err)
	}
	if _, err := r.db.From(goqu.T("schools")).
		Select(goqu.COUNT(goqu.DISTINCT("county_id"))).
		ScanValContext(ctx, &sum.TotalCounties); err != nil {
		return sum, fmt.Errorf("count counties: %w", err)
	}

	var students studentTotals
	if _, err := r.db.From(goqu.T("schools")).
		Select(
			goqu.COALESCE(goqu.SUM("students"), 0).As("total"),
			goqu.COALESCE(goqu.AVG("students"), 0).As("avg"),
			goqu.COALESCE(goqu.MIN("students"), 0).As("min"),
			goqu.COALESCE(goqu.MAX("students"), 0).As("max")).
		Where(goqu.C("students").IsNotNull()).
		ScanStructContext(ctx, &students); err != nil {
		return sum, fmt.Errorf("student totals: %w", err)
	}
	sum.TotalStudents, sum.AvgStudents = students.Total, students.Avg
	sum.MinStudents, sum.MaxStudents = students.Min, students.Max

	var scores scoreAverages
	if _, err := r.db.From(goqu.T("school_performance")).
		Select(
			goqu.COALESCE(goqu.AVG("math_score"), 0).As("math"),
			goqu.COALESCE(goqu.AVG("read_score"), 0).As("read")).
		ScanStructContext(ctx, &scores); err != nil {
		return sum, fmt.Errorf("score averages: %w", err)
	}
	sum.AvgMathScore, sum.AvgReadScore = scores.Math, scores.Read

	if _, err := r.db.From(goqu.T("school_financials")).
		Select(goqu.COALESCE(goqu.AVG("expenditure"), 0)).
		ScanValContext(ctx, &sum.AvgExpenditure); err != nil {
		return sum, fmt.Errorf("average expenditure: %w", err)
	}

	return sum, nil
}

// IsEmpty reports whether no school has been loaded.
func (r *SchoolRepository) IsEmpty(ctx context.Context) (bool, error) {
	var one int
	found, err := r.db.From(goqu.T("schools")).
		Select(goqu.L("1")).
		Limit(1).
		ScanValContext(ctx, &one)
	if err != nil {
		return false, fmt.Errorf("check for schools: %w", err)
	}
	return !found, nil
}

// Set bundles the repositories built on one connection.
type Set struct {
	Schools *SchoolRepository
}

// NewSet binds every repository to db.
func NewSet(db *sql.DB) (*Set, error) {
	schools, err := NewSchoolRepository(db)
	if err != nil {
		return nil, err
	}
	return &Set{Schools: schools}, nil
}
