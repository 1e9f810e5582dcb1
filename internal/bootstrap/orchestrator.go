// Package bootstrap sequences process start-up through a fixed set of stages
// and tears everything down again on shutdown.
//
// Stages advance strictly in order:
//
//	Uninitialized → DependenciesReady → StorageConnected → SchemaReady →
//	RepositoriesReady → ServicesReady → Running
//
// Every stage operation is idempotent and checks its precondition. All of
// them, including Shutdown, serialize on one mutex; stage reads are lock-free.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reportbot/internal/apperrors"
	"reportbot/internal/dispatch"
	"reportbot/internal/workerpool"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
)

// Conn is the live storage connection handed to repositories.
type Conn interface {
	PingContext(ctx context.Context) error
}

// StorageConnector owns the single storage connection.
type StorageConnector[C Conn] interface {
	Connect(ctx context.Context) error
	CreateSchema(ctx context.Context) error
	// GetConnection fails if the connector is not connected.
	GetConnection() (C, error)
	Close() error
}

// DependencyFactory builds the stateless collaborators and the storage connector.
type DependencyFactory[C Conn, D any] func() (D, StorageConnector[C], error)

// RepositoryFactory binds repositories to the live connection.
type RepositoryFactory[C Conn, R any] func(conn C) (R, error)

// ServiceFactory builds business services from dependencies and repositories.
type ServiceFactory[D, R, S any] func(deps D, repos R) (S, error)

// Factories groups the constructors the orchestrator drives.
type Factories[C Conn, D, R, S any] struct {
	Dependencies DependencyFactory[C, D]
	Repositories RepositoryFactory[C, R]
	Services     ServiceFactory[D, R, S]
}

// MetricsRecorder is an optional interface covering the orchestrator and the
// executors it owns.
type MetricsRecorder interface {
	workerpool.MetricsRecorder
	dispatch.MetricsRecorder
	RecordBootstrapStage(ctx context.Context, stage int64)
}

// view is an immutable snapshot of the built collaborators, published after
// every transition so accessors never wait on the stage mutex.
type view[C Conn, D, R, S any] struct {
	stage      Stage
	deps       D
	conn       C
	repos      R
	services   S
	pool       *workerpool.Pool
	dispatcher *dispatch.Dispatcher
}

// Orchestrator is the process-wide bootstrap context. Create one at start-up
// and pass it to whatever needs the built collaborators.
type Orchestrator[C Conn, D, R, S any] struct {
	cfg       Config
	factories Factories[C, D, R, S]
	metrics   MetricsRecorder
	logger    *slog.Logger

	mu    sync.Mutex
	stage atomic.Int32
	snap  atomic.Pointer[view[C, D, R, S]]

	// Guarded by mu.
	deps            D
	storage         StorageConnector[C]
	conn            C
	repos           R
	services        S
	pool            *workerpool.Pool
	dispatcher      *dispatch.Dispatcher
	lastShutdownErr error
}

// New creates an orchestrator at StageUninitialized.
func New[C Conn, D, R, S any](cfg Config, factories Factories[C, D, R, S], metrics MetricsRecorder) *Orchestrator[C, D, R, S] {
	o := &Orchestrator[C, D, R, S]{
		cfg:       cfg.withDefaults(),
		factories: factories,
		metrics:   metrics,
		logger:    slog.With("component", "bootstrap"),
	}
	o.snap.Store(&view[C, D, R, S]{stage: StageUninitialized})
	return o
}

// Stage returns the current stage.
func (o *Orchestrator[C, D, R, S]) Stage() Stage {
	return Stage(o.stage.Load())
}

// IsReady reports whether every collaborator has been built and the
// orchestrator is not shutting down.
func (o *Orchestrator[C, D, R, S]) IsReady() bool {
	s := o.Stage()
	return s == StageServicesReady || s == StageRunning
}

// Ready implements health.ReadinessChecker: ready and the connection answers.
func (o *Orchestrator[C, D, R, S]) Ready(ctx context.Context) error {
	v := o.snap.Load()
	if v.stage != StageServicesReady && v.stage != StageRunning {
		return apperrors.NotReady("application", v.stage.String())
	}
	if err := v.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	return nil
}

// InitializeDependencies builds stateless collaborators, the storage
// connector, the worker pool and the task dispatcher.
func (o *Orchestrator[C, D, R, S]) InitializeDependencies(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanceLocked(ctx, StageDependenciesReady, o.initializeDependencies)
}

// ConnectStorage opens the storage connection, retrying transient failures.
func (o *Orchestrator[C, D, R, S]) ConnectStorage(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanceLocked(ctx, StageStorageConnected, o.connectStorage)
}

// PrepareSchema ensures the persistent schema exists.
func (o *Orchestrator[C, D, R, S]) PrepareSchema(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanceLocked(ctx, StageSchemaReady, o.prepareSchema)
}

// BuildRepositories binds repositories to the live connection.
func (o *Orchestrator[C, D, R, S]) BuildRepositories(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanceLocked(ctx, StageRepositoriesReady, o.buildRepositories)
}

// BuildServices builds business services from the repositories.
func (o *Orchestrator[C, D, R, S]) BuildServices(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanceLocked(ctx, StageServicesReady, o.buildServices)
}

// InitializeAll runs every stage in order and marks the orchestrator Running.
// On failure everything built so far is shut down and the original error is
// returned, leaving no half-ready state behind.
func (o *Orchestrator[C, D, R, S]) InitializeAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Stage() == StageRunning {
		return nil
	}

	start := time.Now()
	o.logger.Info("Initializing application", "stage", o.Stage().String())

	steps := []struct {
		target Stage
		fn     func(context.Context) error
	}{
		{StageDependenciesReady, o.initializeDependencies},
		{StageStorageConnected, o.connectStorage},
		{StageSchemaReady, o.prepareSchema},
		{StageRepositoriesReady, o.buildRepositories},
		{StageServicesReady, o.buildServices},
	}
	for _, st := range steps {
		if err := o.advanceLocked(ctx, st.target, st.fn); err != nil {
			o.logger.Error("Initialization failed, rolling back", "stage", o.Stage().String(), "error", err)
			o.shutdownLocked(context.WithoutCancel(ctx))
			return err
		}
	}

	o.transitionLocked(StageRunning)
	o.logger.Info("Application initialized", "duration", time.Since(start))
	return nil
}

// advanceLocked runs fn to move to target. It is a no-op when target was
// already reached and fails with a stage order violation when the previous
// stage has not been reached yet.
func (o *Orchestrator[C, D, R, S]) advanceLocked(ctx context.Context, target Stage, fn func(context.Context) error) error {
	current := o.Stage()
	if current.reached(target) {
		return nil
	}
	required := target - 1
	if !current.reached(required) {
		return apperrors.StageOrder("bootstrap."+target.String(), current.String(), required.String())
	}

	if err := fn(ctx); err != nil {
		return err
	}
	o.transitionLocked(target)
	return nil
}

func (o *Orchestrator[C, D, R, S]) transitionLocked(s Stage) {
	o.stage.Store(int32(s))
	o.publishLocked()
	if o.metrics != nil {
		o.metrics.RecordBootstrapStage(context.Background(), int64(s))
	}
	o.logger.Debug("Stage reached", "stage", s.String())
}

func (o *Orchestrator[C, D, R, S]) publishLocked() {
	o.snap.Store(&view[C, D, R, S]{
		stage:      o.Stage(),
		deps:       o.deps,
		conn:       o.conn,
		repos:      o.repos,
		services:   o.services,
		pool:       o.pool,
		dispatcher: o.dispatcher,
	})
}

func (o *Orchestrator[C, D, R, S]) initializeDependencies(ctx context.Context) error {
	const op = "bootstrap.initializeDependencies"
	stage := o.Stage().String()

	if o.factories.Dependencies == nil {
		return apperrors.Bootstrap(apperrors.ErrDependencyConstruction, stage, op, errors.New("no dependency factory"))
	}
	deps, storage, err := o.factories.Dependencies()
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrDependencyConstruction, stage, op, err)
	}
	if storage == nil {
		return apperrors.Bootstrap(apperrors.ErrDependencyConstruction, stage, op, errors.New("no storage connector"))
	}

	var poolMetrics workerpool.MetricsRecorder
	var dispatchMetrics dispatch.MetricsRecorder
	if o.metrics != nil {
		poolMetrics, dispatchMetrics = o.metrics, o.metrics
	}

	o.deps = deps
	o.storage = storage
	o.pool = workerpool.New(o.cfg.Pool, poolMetrics)
	o.dispatcher = dispatch.New(o.pool, o.cfg.Dispatch, dispatchMetrics)
	return nil
}

func (o *Orchestrator[C, D, R, S]) connectStorage(ctx context.Context) error {
	const op = "bootstrap.connectStorage"
	stage := o.Stage().String()

	err := retry.Do(
		func() error { return o.storage.Connect(ctx) },
		retry.Context(ctx),
		retry.Attempts(o.cfg.ConnectAttempts),
		retry.Delay(o.cfg.ConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("Storage connect failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrStorageConnection, stage, op, err)
	}

	conn, err := o.liveConnection(ctx)
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrStorageConnection, stage, op, err)
	}
	o.conn = conn
	return nil
}

func (o *Orchestrator[C, D, R, S]) prepareSchema(ctx context.Context) error {
	if err := o.storage.CreateSchema(ctx); err != nil {
		return apperrors.Bootstrap(apperrors.ErrSchemaCreation, o.Stage().String(), "bootstrap.prepareSchema", err)
	}
	return nil
}

func (o *Orchestrator[C, D, R, S]) buildRepositories(ctx context.Context) error {
	const op = "bootstrap.buildRepositories"
	stage := o.Stage().String()

	conn, err := o.liveConnection(ctx)
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrRepositoryCreation, stage, op, err)
	}
	if o.factories.Repositories == nil {
		return apperrors.Bootstrap(apperrors.ErrRepositoryCreation, stage, op, errors.New("no repository factory"))
	}
	repos, err := o.factories.Repositories(conn)
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrRepositoryCreation, stage, op, err)
	}
	o.conn = conn
	o.repos = repos
	return nil
}

func (o *Orchestrator[C, D, R, S]) buildServices(ctx context.Context) error {
	const op = "bootstrap.buildServices"
	stage := o.Stage().String()

	if o.factories.Services == nil {
		return apperrors.Bootstrap(apperrors.ErrServiceCreation, stage, op, errors.New("no service factory"))
	}
	services, err := o.factories.Services(o.deps, o.repos)
	if err != nil {
		return apperrors.Bootstrap(apperrors.ErrServiceCreation, stage, op, err)
	}
	o.services = services
	return nil
}

// liveConnection fetches the connection and checks that it answers.
func (o *Orchestrator[C, D, R, S]) liveConnection(ctx context.Context) (C, error) {
	var zero C
	conn, err := o.storage.GetConnection()
	if err != nil {
		return zero, err
	}
	if any(conn) == nil {
		return zero, errors.New("connector returned no connection")
	}
	if err := conn.PingContext(ctx); err != nil {
		return zero, fmt.Errorf("connection is not usable: %w", err)
	}
	return conn, nil
}

// Dependencies returns the stateless collaborators.
func (o *Orchestrator[C, D, R, S]) Dependencies() (D, error) {
	v := o.snap.Load()
	if !v.stage.reached(StageDependenciesReady) {
		var zero D
		return zero, apperrors.NotReady("dependencies", v.stage.String())
	}
	return v.deps, nil
}

// Repositories returns the repository set.
func (o *Orchestrator[C, D, R, S]) Repositories() (R, error) {
	v := o.snap.Load()
	if !v.stage.reached(StageRepositoriesReady) {
		var zero R
		return zero, apperrors.NotReady("repositories", v.stage.String())
	}
	return v.repos, nil
}

// Services returns the service set.
func (o *Orchestrator[C, D, R, S]) Services() (S, error) {
	v := o.snap.Load()
	if !v.stage.reached(StageServicesReady) {
		var zero S
		return zero, apperrors.NotReady("services", v.stage.String())
	}
	return v.services, nil
}

// Dispatcher returns the task dispatcher.
func (o *Orchestrator[C, D, R, S]) Dispatcher() (*dispatch.Dispatcher, error) {
	v := o.snap.Load()
	if !v.stage.reached(StageDependenciesReady) {
		return nil, apperrors.NotReady("dispatcher", v.stage.String())
	}
	return v.dispatcher, nil
}

// Pool returns the worker pool.
func (o *Orchestrator[C, D, R, S]) Pool() (*workerpool.Pool, error) {
	v := o.snap.Load()
	if !v.stage.reached(StageDependenciesReady) {
		return nil, apperrors.NotReady("worker pool", v.stage.String())
	}
	return v.pool, nil
}
