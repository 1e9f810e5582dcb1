package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_String(t *testing.T) {
	src := FromEnv()
	assert.Equal(t, "default", src.String("test.nonexistent_var", "default"))

	t.Setenv("TEST_GET_STRING", "custom")
	assert.Equal(t, "custom", src.String("test.get_string", "default"))
}

func TestSource_Int(t *testing.T) {
	src := FromEnv()
	assert.Equal(t, 42, src.Int("test.nonexistent_int", 42))

	t.Setenv("TEST_INT_VALID", "123")
	assert.Equal(t, 123, src.Int("test.int_valid", 42))

	t.Setenv("TEST_INT_INVALID", "not-a-number")
	assert.Equal(t, 42, src.Int("test.int_invalid", 42))
}

func TestSource_Duration(t *testing.T) {
	src := FromEnv()
	assert.Equal(t, 5*time.Second, src.Duration("test.nonexistent_duration", 5*time.Second))

	t.Setenv("TEST_DURATION_VALID", "30s")
	assert.Equal(t, 30*time.Second, src.Duration("test.duration_valid", 5*time.Second))

	t.Setenv("TEST_DURATION_INVALID", "thirty")
	assert.Equal(t, 5*time.Second, src.Duration("test.duration_invalid", 5*time.Second))
}

func TestSource_FloatAndBool(t *testing.T) {
	t.Setenv("TEST_FLOAT_VALUE", "10.5")
	t.Setenv("TEST_BOOL_VALUE", "true")
	src := FromEnv()

	assert.InDelta(t, 10.5, src.Float("test.float_value", 1), 0.0001)
	assert.InDelta(t, 1.0, src.Float("test.float_missing", 1), 0.0001)
	assert.True(t, src.Bool("test.bool_value", false))
	assert.False(t, src.Bool("test.bool_missing", false))
}

func TestSource_StringSliceFromEnv(t *testing.T) {
	t.Setenv("TEST_COUNTIES", "Fresno, Contra Costa ,,Glenn")
	src := FromEnv()

	assert.Equal(t, []string{"Fresno", "Contra Costa", "Glenn"}, src.StringSlice("test.counties", nil))
	assert.Equal(t, []string{"x"}, src.StringSlice("test.counties_missing", []string{"x"}))
}

func TestSource_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reportbot.yaml")
	content := `
pool:
  core_workers: 8
  idle_timeout: 90s
service:
  expenditure_counties:
    - Fresno
    - El Dorado
server:
  port: "9999"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, src.Int("pool.core_workers", 5))
	assert.Equal(t, 90*time.Second, src.Duration("pool.idle_timeout", time.Minute))
	assert.Equal(t, []string{"Fresno", "El Dorado"}, src.StringSlice("service.expenditure_counties", nil))

	// Environment overrides the file.
	t.Setenv("SERVER_PORT", "7000")
	assert.Equal(t, "7000", src.String("server.port", "8080"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSource_SecretFile(t *testing.T) {
	src := FromEnv()
	assert.Empty(t, src.SecretFile("test.secret_unset_file"))

	t.Setenv("TEST_SECRET_MISSING_FILE", "/nonexistent/path/to/secret")
	assert.Empty(t, src.SecretFile("test.secret_missing_file"))

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("  my-secret-value  \n"), 0o600))
	t.Setenv("TEST_SECRET_FILE", path)
	assert.Equal(t, "my-secret-value", src.SecretFile("test.secret_file"))
	assert.Equal(t, "my-secret-value", src.Secret("test.secret"))

	t.Setenv("TEST_SECRET", "inline")
	assert.Equal(t, "inline", src.Secret("test.secret"))
}

func TestLoadServiceConfig_Defaults(t *testing.T) {
	cfg := LoadServiceConfig(FromEnv())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 5*time.Second, cfg.ShutdownDrainWait)
}
