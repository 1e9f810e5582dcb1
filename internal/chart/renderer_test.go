package chart

import (
	"bytes"
	"image/png"
	"testing"

	"reportbot/internal/apperrors"
	"reportbot/internal/config"
	"reportbot/internal/school"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageStudents_RendersPNG(t *testing.T) {
	t.Parallel()
	r := NewRenderer(Config{})

	out, err := r.AverageStudents([]school.CountyStudents{
		{County: "Alameda", AvgStudents: 831.7},
		{County: "Fresno", AvgStudents: 4433.3},
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func TestAverageStudents_WidensForManyBars(t *testing.T) {
	t.Parallel()
	r := NewRenderer(Config{Width: 300, Height: 300})

	stats := make([]school.CountyStudents, 10)
	for i := range stats {
		stats[i] = school.CountyStudents{County: string(rune('A' + i)), AvgStudents: float64(100 * (i + 1))}
	}
	out, err := r.AverageStudents(stats)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 10*(60+40)+120, img.Bounds().Dx())
}

func TestAverageStudents_EqualValues(t *testing.T) {
	t.Parallel()
	r := NewRenderer(Config{})

	_, err := r.AverageStudents([]school.CountyStudents{{County: "Glenn", AvgStudents: 0}})
	assert.NoError(t, err)
}

func TestAverageStudents_NoData(t *testing.T) {
	t.Parallel()
	r := NewRenderer(Config{})

	_, err := r.AverageStudents(nil)
	assert.ErrorIs(t, err, apperrors.ErrNoData)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("CHART_WIDTH", "640")
	t.Setenv("CHART_HEIGHT", "-1")

	cfg := LoadConfig(config.FromEnv())
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, 60, cfg.BarWidth)
}
