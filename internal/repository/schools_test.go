package repository

import (
	"context"
	"testing"

	"reportbot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standardCounties = []string{"Fresno", "Contra Costa", "El Dorado", "Glenn"}

func newRepo(t *testing.T, populated bool) *SchoolRepository {
	t.Helper()
	db := testutil.SQLite(t)
	if populated {
		_, err := db.InsertSchools(context.Background(), testutil.Schools())
		require.NoError(t, err)
	}
	conn, err := db.GetConnection()
	require.NoError(t, err)
	repo, err := NewSchoolRepository(conn)
	require.NoError(t, err)
	return repo
}

func TestNewSchoolRepository_NilDB(t *testing.T) {
	t.Parallel()
	_, err := NewSchoolRepository(nil)
	assert.Error(t, err)
}

func TestAverageExpenditureInCounties(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)

	stats, err := repo.AverageExpenditureInCounties(context.Background(), standardCounties, 10)
	require.NoError(t, err)
	require.Len(t, stats, 3, "El Dorado is below the minimum expenditure")

	assert.Equal(t, "Contra Costa", stats[0].County)
	assert.Equal(t, 2, stats[0].SchoolCount)
	assert.InDelta(t, 8500, stats[0].AvgExpenditure, 1e-6)
	assert.InDelta(t, 8000, stats[0].MinExpenditure, 1e-6)
	assert.InDelta(t, 9000, stats[0].MaxExpenditure, 1e-6)

	assert.Equal(t, "Fresno", stats[1].County)
	assert.Equal(t, 3, stats[1].SchoolCount)
	assert.InDelta(t, 6000, stats[1].AvgExpenditure, 1e-6)

	assert.Equal(t, "Glenn", stats[2].County)
	assert.Equal(t, 1, stats[2].SchoolCount)
}

func TestAverageExpenditureInCounties_NoCounties(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)

	stats, err := repo.AverageExpenditureInCounties(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestAverageExpenditureInCounties_EmptyDatabase(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, false)

	stats, err := repo.AverageExpenditureInCounties(context.Background(), standardCounties, 10)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestTopMathSchoolByStudentRange(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)
	ctx := context.Background()

	top, err := repo.TopMathSchoolByStudentRange(ctx, 5000, 7500)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, 2, top.ID)
	assert.Equal(t, "Clovis West", top.Name)
	assert.Equal(t, "Fresno", top.County)
	assert.Equal(t, 7000, top.Students)
	assert.InDelta(t, 720, top.MathScore, 1e-6)
	assert.InDelta(t, 6000, top.Expenditure, 1e-6)

	top, err = repo.TopMathSchoolByStudentRange(ctx, 10000, 11000)
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "Walnut Creek", top.Name)

	top, err = repo.TopMathSchoolByStudentRange(ctx, 20000, 30000)
	require.NoError(t, err)
	assert.Nil(t, top)
}

func TestAverageStudentsByCounty(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)

	stats, err := repo.AverageStudentsByCounty(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stats, 2, "only Alameda and Fresno have three schools with students")

	assert.Equal(t, "Alameda", stats[0].County)
	assert.Equal(t, 3, stats[0].SchoolCount)
	assert.Equal(t, 195, stats[0].MinStudents)
	assert.Equal(t, 1800, stats[0].MaxStudents)
	assert.Equal(t, 2495, stats[0].TotalStudents)
	assert.InDelta(t, 2495.0/3, stats[0].AvgStudents, 1e-6)

	assert.Equal(t, "Fresno", stats[1].County)
	assert.Equal(t, 13300, stats[1].TotalStudents)
}

func TestAverageStudentsByCounty_Limit(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)

	stats, err := repo.AverageStudentsByCounty(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, stats, 1)

	stats, err = repo.AverageStudentsByCounty(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestSummary(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, true)

	sum, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, sum.Empty())
	assert.Equal(t, 11, sum.TotalSchools)
	assert.Equal(t, 5, sum.TotalCounties)
	assert.Equal(t, 27145, sum.TotalStudents)
	assert.Equal(t, 195, sum.MinStudents)
	assert.Equal(t, 10500, sum.MaxStudents)
	assert.InDelta(t, 2714.5, sum.AvgStudents, 1e-6)
	assert.InDelta(t, 667, sum.AvgMathScore, 1e-6)
	assert.InDelta(t, 664.66, sum.AvgReadScore, 1e-6)
	assert.InDelta(t, 5608.99, sum.AvgExpenditure, 1e-6)
}

func TestSummary_EmptyDatabase(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, false)

	sum, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Empty())
	assert.Zero(t, sum.TotalStudents)
	assert.Zero(t, sum.AvgMathScore)
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	empty, err := newRepo(t, false).IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = newRepo(t, true).IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestQueries_ClosedDatabase(t *testing.T) {
	t.Parallel()
	db := testutil.SQLite(t, testutil.Schools()...)
	conn, err := db.GetConnection()
	require.NoError(t, err)
	repo, err := NewSet(conn)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = repo.Schools.Summary(context.Background())
	assert.Error(t, err)
	_, err = repo.Schools.AverageStudentsByCounty(context.Background(), 10)
	assert.Error(t, err)
}
