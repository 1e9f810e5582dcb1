package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"reportbot/internal/apperrors"
	"reportbot/internal/csvparse"
	"reportbot/internal/school"
)

// FileParser reads a dataset file.
type FileParser interface {
	ParseFile(path string) (csvparse.Result, error)
}

// SchoolWriter persists schools through the single-writer path.
type SchoolWriter interface {
	InsertSchools(ctx context.Context, schools []school.School) (int, error)
}

// Invalidator drops derived data after a load.
type Invalidator interface {
	Invalidate()
}

// LoadResult describes a finished load.
type LoadResult struct {
	Path     string        `json:"path"`
	Rows     int           `json:"rows"`
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// LoadService imports the CSV dataset. Only one load runs at a time.
type LoadService struct {
	parser      FileParser
	writer      SchoolWriter
	invalidator Invalidator
	defaultPath string
	logger      *slog.Logger

	running sync.Mutex
}

// NewLoadService creates a load service. invalidator may be nil.
func NewLoadService(parser FileParser, writer SchoolWriter, invalidator Invalidator, defaultPath string) *LoadService {
	return &LoadService{
		parser:      parser,
		writer:      writer,
		invalidator: invalidator,
		defaultPath: defaultPath,
		logger:      slog.With("component", "loader"),
	}
}

// LoadFile parses the CSV at path (the configured file when empty) and
// writes every valid school. A load started while another is running fails
// with a conflict error.
func (s *LoadService) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	if path == "" {
		path = s.defaultPath
	}
	if !s.running.TryLock() {
		return LoadResult{}, apperrors.Conflict("load", "A data load is already running. Please wait for it to finish.")
	}
	defer s.running.Unlock()

	start := time.Now()
	s.logger.Info("Loading data", "path", path)

	parsed, err := s.parser.ParseFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{}, apperrors.NoData("data file", fmt.Sprintf("The data file %s was not found.", path))
		}
		return LoadResult{}, apperrors.Internal("load.parse", err)
	}
	if len(parsed.Schools) == 0 {
		return LoadResult{}, apperrors.NoData("schools", "No valid schools were found in the CSV file. Check the file format.")
	}
	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}

	loaded, err := s.writer.InsertSchools(ctx, parsed.Schools)
	if err != nil {
		return LoadResult{}, apperrors.Internal("load.insert", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}

	res := LoadResult{
		Path:     path,
		Rows:     parsed.Rows,
		Loaded:   loaded,
		Skipped:  parsed.SkippedCount(),
		Duration: time.Since(start),
	}
	s.logger.Info("Data loaded", "path", path, "loaded", res.Loaded, "skipped", res.Skipped, "duration", res.Duration)
	return res, nil
}
