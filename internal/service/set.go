package service

import (
	"errors"

	"reportbot/internal/report"
	"reportbot/internal/repository"
)

// Set bundles the services built by the bootstrap orchestrator.
type Set struct {
	Statistics *StatisticsService
	Loader     *LoadService
	Charts     *ChartService
}

// Deps are the stateless collaborators the services need.
type Deps struct {
	Parser    FileParser
	Writer    SchoolWriter
	Formatter *report.Formatter
	Renderer  BarRenderer
}

// NewSet wires every service to the repositories.
func NewSet(cfg Config, deps Deps, repos *repository.Set) (*Set, error) {
	if repos == nil || repos.Schools == nil {
		return nil, errors.New("service set: no school repository")
	}
	if deps.Parser == nil || deps.Writer == nil || deps.Formatter == nil || deps.Renderer == nil {
		return nil, errors.New("service set: missing dependency")
	}
	cfg = cfg.withDefaults()

	stats := NewStatisticsService(repos.Schools, deps.Formatter, cfg)
	return &Set{
		Statistics: stats,
		Loader:     NewLoadService(deps.Parser, deps.Writer, stats, cfg.DataPath),
		Charts:     NewChartService(repos.Schools, deps.Renderer, deps.Formatter, cfg),
	}, nil
}
