package main

import (
	"context"
	"database/sql"
	"fmt"
	"reportbot/internal/bootstrap"
	"reportbot/internal/chart"
	"reportbot/internal/config"
	"reportbot/internal/csvparse"
	"reportbot/internal/report"
	"reportbot/internal/repository"
	"reportbot/internal/service"
	"reportbot/internal/storage"
)

// orchestrator is the bootstrap orchestrator of this binary.
type orchestrator = bootstrap.Orchestrator[*sql.DB, service.Deps, *repository.Set, *service.Set]

// app is the configuration plus the bootstrap orchestrator shared by every
// subcommand.
type app struct {
	src       *config.Source
	formatter *report.Formatter
	orch      *orchestrator
}

// newApp loads configuration and prepares an orchestrator. Nothing is
// connected until initialize is called. metrics may be nil.
func newApp(flags *globalFlags, metrics bootstrap.MetricsRecorder) (*app, error) {
	src, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	storageCfg := storage.LoadConfig(src)
	serviceCfg := service.LoadConfig(src)
	chartCfg := chart.LoadConfig(src)
	formatter := report.NewFormatter()

	factories := bootstrap.Factories[*sql.DB, service.Deps, *repository.Set, *service.Set]{
		Dependencies: func() (service.Deps, bootstrap.StorageConnector[*sql.DB], error) {
			db := storage.NewSQLite(storageCfg)
			return service.Deps{
				Parser:    csvparse.New(),
				Writer:    db,
				Formatter: formatter,
				Renderer:  chart.NewRenderer(chartCfg),
			}, db, nil
		},
		Repositories: repository.NewSet,
		Services: func(deps service.Deps, repos *repository.Set) (*service.Set, error) {
			return service.NewSet(serviceCfg, deps, repos)
		},
	}

	return &app{
		src:       src,
		formatter: formatter,
		orch:      bootstrap.New(bootstrap.LoadConfig(src), factories, metrics),
	}, nil
}

func (a *app) initialize(ctx context.Context) error {
	if err := a.orch.InitializeAll(ctx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	return nil
}

// shutdown stops the orchestrator and returns its cleanup failures.
func (a *app) shutdown(ctx context.Context) error {
	a.orch.Shutdown(ctx)
	return a.orch.LastShutdownError()
}
