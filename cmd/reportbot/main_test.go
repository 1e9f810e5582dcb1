package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"reportbot/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig creates a config file pointing at a temp database and CSV.
func writeConfig(t *testing.T, csv string) string {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "schools.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(csv), 0o644))

	cfg := fmt.Sprintf("storage:\n  path: %s\ndata:\n  csv_path: %s\npool:\n  core_workers: 2\n",
		filepath.Join(dir, "schools.db"), csvPath)
	cfgPath := filepath.Join(dir, "reportbot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "load", "report"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestLoadThenReport(t *testing.T) {
	cfg := writeConfig(t, testutil.CSV(testutil.Schools()))

	out, err := execute(t, "load", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 11 schools")

	out, err = execute(t, "report", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Average expenditure in")
	assert.Contains(t, out, "Best math schools by student range")
	assert.Contains(t, out, "Database statistics")
	assert.Contains(t, out, "Schools: 11")
}

func TestLoad_ExplicitFile(t *testing.T) {
	cfg := writeConfig(t, testutil.CSVHeader+"\n")

	other := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(other, []byte(testutil.CSV(testutil.Schools()[:3])), 0o644))

	out, err := execute(t, "load", "--config", cfg, "--file", other)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 3 schools")
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := writeConfig(t, "")

	_, err := execute(t, "load", "--config", cfg, "--file", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestLoad_BadConfig(t *testing.T) {
	_, err := execute(t, "load", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
