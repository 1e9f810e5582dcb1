package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"reportbot/internal/apperrors"
	"reportbot/internal/chart"
	"reportbot/internal/config"
	"reportbot/internal/csvparse"
	"reportbot/internal/report"
	"reportbot/internal/repository"
	"reportbot/internal/school"
	"reportbot/internal/storage"
	"reportbot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSet builds the full service set on a temp database.
func newSet(t *testing.T, schools ...school.School) (*Set, *storage.SQLite) {
	t.Helper()
	db := testutil.SQLite(t, schools...)
	conn, err := db.GetConnection()
	require.NoError(t, err)
	repos, err := repository.NewSet(conn)
	require.NoError(t, err)

	set, err := NewSet(Config{}, Deps{
		Parser:    csvparse.New(),
		Writer:    db,
		Formatter: report.NewFormatter(),
		Renderer:  chart.NewRenderer(chart.Config{}),
	}, repos)
	require.NoError(t, err)
	return set, db
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schools.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStatistics_Reports(t *testing.T) {
	t.Parallel()
	set, _ := newSet(t, testutil.Schools()...)
	ctx := context.Background()

	out, err := set.Statistics.ExpenditureReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "Average expenditure in Fresno, Contra Costa, El Dorado, Glenn")
	assert.Contains(t, out, "County: Contra Costa")
	assert.NotContains(t, out, "County: El Dorado")

	out, err = set.Statistics.MathSchoolsReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "Range 1 (5000-7500 students)")
	assert.Contains(t, out, "Name: Clovis West")
	assert.Contains(t, out, "Name: Walnut Creek")

	out, err = set.Statistics.StudentStatsReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "1. Alameda")
	assert.Contains(t, out, "2. Fresno")

	out, err = set.Statistics.StudentStatsBrief(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, out, "Alameda:")
	assert.Contains(t, out, "... and 1 more counties")

	out, err = set.Statistics.SummaryReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "Schools: 11")

	doc, err := set.Statistics.SummaryYAML(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "total_schools: 11")
}

func TestStatistics_EmptyDatabase(t *testing.T) {
	t.Parallel()
	set, _ := newSet(t)
	ctx := context.Background()

	out, err := set.Statistics.SummaryReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "The database is empty")

	out, err = set.Statistics.StudentStatsReport(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "/load")
}

type countingRepo struct {
	summaries atomic.Int32
	err       error
}

func (r *countingRepo) AverageExpenditureInCounties(ctx context.Context, counties []string, minExpenditure float64) ([]school.ExpenditureStats, error) {
	return nil, r.err
}

func (r *countingRepo) TopMathSchoolByStudentRange(ctx context.Context, minStudents, maxStudents int) (*school.MathSchool, error) {
	return nil, r.err
}

func (r *countingRepo) AverageStudentsByCounty(ctx context.Context, limit int) ([]school.CountyStudents, error) {
	return nil, r.err
}

func (r *countingRepo) Summary(ctx context.Context) (school.Summary, error) {
	n := r.summaries.Add(1)
	return school.Summary{TotalSchools: int(n)}, r.err
}

func TestStatistics_SummaryIsCached(t *testing.T) {
	t.Parallel()
	repo := &countingRepo{}
	svc := NewStatisticsService(repo, report.NewFormatter(), Config{CacheTTL: time.Hour})
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	second, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), repo.summaries.Load())

	svc.Invalidate()
	third, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, third.TotalSchools)
}

func TestStatistics_RepositoryErrors(t *testing.T) {
	t.Parallel()
	repo := &countingRepo{err: errors.New("SELECT failed: no such table: schools")}
	svc := NewStatisticsService(repo, report.NewFormatter(), Config{})
	ctx := context.Background()

	_, err := svc.ExpenditureReport(ctx)
	require.ErrorIs(t, err, apperrors.ErrInternal)
	assert.NotContains(t, apperrors.UserMessage(err), "SELECT")

	_, err = svc.MathSchoolsReport(ctx)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	_, err = svc.StudentStatsReport(ctx)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	_, err = svc.SummaryYAML(ctx)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestLoadService_LoadFile(t *testing.T) {
	t.Parallel()
	set, db := newSet(t)
	ctx := context.Background()
	path := writeCSV(t, testutil.CSV(testutil.Schools())+"12,1,Broken\n")

	before, err := set.Statistics.Summary(ctx)
	require.NoError(t, err)
	require.True(t, before.Empty())

	res, err := set.Loader.LoadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 11, res.Loaded)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 12, res.Rows)

	after, err := set.Statistics.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, after.TotalSchools, "load invalidates the cached summary")

	res, err = set.Loader.LoadFile(ctx, path)
	require.NoError(t, err, "reloading upserts")
	assert.Equal(t, 11, res.Loaded)

	conn, err := db.GetConnection()
	require.NoError(t, err)
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schools").Scan(&n))
	assert.Equal(t, 11, n)
}

func TestLoadService_DefaultPath(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, testutil.CSV(testutil.Schools()[:2]))
	db := testutil.SQLite(t)
	svc := NewLoadService(csvparse.New(), db, nil, path)

	res, err := svc.LoadFile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 2, res.Loaded)
}

func TestLoadService_MissingFile(t *testing.T) {
	t.Parallel()
	svc := NewLoadService(csvparse.New(), testutil.SQLite(t), nil, "")

	_, err := svc.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, apperrors.ErrNoData)
	assert.Contains(t, apperrors.UserMessage(err), "was not found")
}

func TestLoadService_NoValidSchools(t *testing.T) {
	t.Parallel()
	svc := NewLoadService(csvparse.New(), testutil.SQLite(t), nil, "")

	_, err := svc.LoadFile(context.Background(), writeCSV(t, testutil.CSVHeader+"\n1,2,short\n"))
	require.ErrorIs(t, err, apperrors.ErrNoData)
	assert.Contains(t, apperrors.UserMessage(err), "No valid schools")
}

type blockingWriter struct {
	entered chan struct{}
	release chan struct{}
}

func (w *blockingWriter) InsertSchools(ctx context.Context, schools []school.School) (int, error) {
	close(w.entered)
	<-w.release
	return len(schools), nil
}

func TestLoadService_RejectsConcurrentLoad(t *testing.T) {
	t.Parallel()
	w := &blockingWriter{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewLoadService(csvparse.New(), w, nil, writeCSV(t, testutil.CSV(testutil.Schools())))

	done := make(chan error, 1)
	go func() {
		_, err := svc.LoadFile(context.Background(), "")
		done <- err
	}()
	<-w.entered

	_, err := svc.LoadFile(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, apperrors.UserMessage(err), "already running")

	close(w.release)
	require.NoError(t, <-done)
}

type failingWriter struct{}

func (failingWriter) InsertSchools(ctx context.Context, schools []school.School) (int, error) {
	return 0, errors.New("database is locked")
}

func TestLoadService_InsertFailure(t *testing.T) {
	t.Parallel()
	var invalidated atomic.Int32
	svc := NewLoadService(csvparse.New(), failingWriter{}, invalidatorFunc(func() { invalidated.Add(1) }),
		writeCSV(t, testutil.CSV(testutil.Schools())))

	_, err := svc.LoadFile(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Zero(t, invalidated.Load())
}

type invalidatorFunc func()

func (f invalidatorFunc) Invalidate() { f() }

func TestChartService_AverageStudents(t *testing.T) {
	t.Parallel()
	set, _ := newSet(t, testutil.Schools()...)

	c, err := set.Charts.AverageStudents(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, c.PNG)
	assert.Contains(t, c.Caption, "2 largest counties")
}

func TestChartService_EmptyDatabase(t *testing.T) {
	t.Parallel()
	set, _ := newSet(t)

	_, err := set.Charts.AverageStudents(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNoData)
	assert.Contains(t, apperrors.UserMessage(err), "/load")
}

func TestNewSet_MissingDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewSet(Config{}, Deps{}, nil)
	assert.Error(t, err)

	db := testutil.SQLite(t)
	conn, err := db.GetConnection()
	require.NoError(t, err)
	repos, err := repository.NewSet(conn)
	require.NoError(t, err)
	_, err = NewSet(Config{}, Deps{Writer: db}, repos)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVICE_EXPENDITURE_COUNTIES", "Fresno,Glenn")
	t.Setenv("SERVICE_STUDENT_RANGES", "100-200")
	t.Setenv("SERVICE_COUNTY_LIMIT", "5")

	cfg := LoadConfig(config.FromEnv())
	assert.Equal(t, []string{"Fresno", "Glenn"}, cfg.ExpenditureCounties)
	assert.Equal(t, []school.StudentRange{{Min: 100, Max: 200}}, cfg.StudentRanges)
	assert.Equal(t, 5, cfg.CountyLimit)
	assert.InDelta(t, 10, cfg.MinExpenditure, 1e-9)
}

func TestLoadConfig_InvalidRangesFallBack(t *testing.T) {
	t.Setenv("SERVICE_STUDENT_RANGES", "oops")

	cfg := LoadConfig(config.FromEnv())
	assert.Equal(t, DefaultStudentRanges, cfg.StudentRanges)
	assert.Equal(t, DefaultCounties, cfg.ExpenditureCounties)
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()
	assert.InDelta(t, 10, cfg.MinExpenditure, 1e-9)
	assert.Equal(t, DefaultCounties, cfg.ExpenditureCounties)
	assert.Equal(t, DefaultStudentRanges, cfg.StudentRanges)
	assert.Equal(t, 10, cfg.CountyLimit)
	assert.Equal(t, time.Minute, cfg.CacheTTL)

	cfg = Config{MinExpenditure: 2500}.withDefaults()
	assert.InDelta(t, 2500, cfg.MinExpenditure, 1e-9)
}

func TestLoadConfig_ZeroMinExpenditureFallsBack(t *testing.T) {
	t.Setenv("SERVICE_MIN_EXPENDITURE", "0")

	cfg := LoadConfig(config.FromEnv())
	assert.InDelta(t, 10, cfg.MinExpenditure, 1e-9)
}

// rangeRepo fails one student range and blocks the others until cancelled.
type rangeRepo struct {
	countingRepo
	failMin   int
	cancelled atomic.Int32
}

func (r *rangeRepo) TopMathSchoolByStudentRange(ctx context.Context, minStudents, maxStudents int) (*school.MathSchool, error) {
	if minStudents == r.failMin {
		return nil, errors.New("database is locked")
	}
	<-ctx.Done()
	r.cancelled.Add(1)
	return nil, ctx.Err()
}

func TestStatistics_MathSchoolsReport_FirstFailureCancelsRest(t *testing.T) {
	t.Parallel()
	repo := &rangeRepo{failMin: 10000}
	svc := NewStatisticsService(repo, report.NewFormatter(), Config{
		StudentRanges: []school.StudentRange{{Min: 5000, Max: 7500}, {Min: 10000, Max: 11000}, {Min: 100, Max: 200}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := svc.MathSchoolsReport(ctx)
	require.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Equal(t, int32(2), repo.cancelled.Load())
	assert.NoError(t, ctx.Err(), "siblings were cancelled by the failure, not the deadline")
}
