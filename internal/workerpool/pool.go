// Package workerpool provides a bounded executor with core and on-demand
// workers, a bounded FIFO queue, and a caller-runs overflow policy.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reportbot/internal/apperrors"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work. ctx is cancelled when the pool is force-stopped.
type Task func(ctx context.Context)

// MetricsRecorder is an optional interface for recording pool metrics.
type MetricsRecorder interface {
	RecordPoolQueueSize(ctx context.Context, size int64)
	RecordPoolWorkers(ctx context.Context, workers, active int64)
	RecordPoolCallerRuns(ctx context.Context)
	RecordPoolPanic(ctx context.Context)
}

// Stats holds pool statistics.
type Stats struct {
	CoreWorkers   int   `json:"coreWorkers"`
	MaxWorkers    int   `json:"maxWorkers"`
	Workers       int   `json:"workers"`       // live workers
	QueueDepth    int   `json:"queueDepth"`    // tasks waiting for a worker
	QueueCapacity int   `json:"queueCapacity"` // bounded queue size
	Active        int64 `json:"active"`        // tasks executing right now
	Submitted     int64 `json:"submitted"`
	Completed     int64 `json:"completed"`
	CallerRuns    int64 `json:"callerRuns"` // tasks executed on the submitting goroutine
	Panics        int64 `json:"panics"`
}

type callerRunsKey struct{}

// RanOnCaller reports whether the task owning ctx is executing on the
// goroutine that submitted it.
func RanOnCaller(ctx context.Context) bool {
	v, _ := ctx.Value(callerRunsKey{}).(bool)
	return v
}

// Pool is a bounded worker pool. Work is never dropped while the pool is
// open: when the queue is full and all MaxWorkers are busy, Submit runs the
// task itself.
type Pool struct {
	cfg     Config
	queue   chan Task
	logger  *slog.Logger
	metrics MetricsRecorder

	mu      sync.Mutex
	workers int
	closed  bool

	// ctx is handed to every task and cancelled on forced shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   chan struct{}

	nextID     atomic.Int64
	active     atomic.Int64
	submitted  atomic.Int64
	completed  atomic.Int64
	callerRuns atomic.Int64
	panics     atomic.Int64
}

// New creates a pool and starts its core workers.
func New(cfg Config, metrics MetricsRecorder) *Pool {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		cfg:     cfg,
		queue:   make(chan Task, cfg.QueueCapacity),
		logger:  slog.With("component", "workerpool"),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}

	p.mu.Lock()
	for range cfg.CoreWorkers {
		p.spawnLocked(nil)
	}
	p.mu.Unlock()

	if metrics != nil {
		go p.reportQueueSize()
	}

	p.logger.Info("Worker pool started",
		"core", cfg.CoreWorkers,
		"max", cfg.MaxWorkers,
		"queue", cfg.QueueCapacity,
	)
	return p
}

// Submit hands a task to the pool. It returns true when the pool was
// saturated and the task already ran on the calling goroutine.
// After Shutdown it returns ErrPoolClosed.
func (p *Pool) Submit(task Task) (bool, error) {
	if task == nil {
		return false, errors.New("workerpool: nil task")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, apperrors.ErrPoolClosed
	}
	p.submitted.Add(1)

	select {
	case p.queue <- task:
		p.mu.Unlock()
		return false, nil
	default:
	}

	if p.workers < p.cfg.MaxWorkers {
		p.spawnLocked(task)
		p.mu.Unlock()
		return false, nil
	}

	// Saturated: run on the caller. Registered with wg so Shutdown waits for it.
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	p.callerRuns.Add(1)
	if p.metrics != nil {
		p.metrics.RecordPoolCallerRuns(context.Background())
	}
	p.logger.Debug("Pool saturated, running task on caller", "workers", p.cfg.MaxWorkers, "queue", p.cfg.QueueCapacity)

	p.run(context.WithValue(p.ctx, callerRunsKey{}, true), task)
	return true, nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	return Stats{
		CoreWorkers:   p.cfg.CoreWorkers,
		MaxWorkers:    p.cfg.MaxWorkers,
		Workers:       workers,
		QueueDepth:    len(p.queue),
		QueueCapacity: p.cfg.QueueCapacity,
		Active:        p.active.Load(),
		Submitted:     p.submitted.Load(),
		Completed:     p.completed.Load(),
		CallerRuns:    p.callerRuns.Load(),
		Panics:        p.panics.Load(),
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. If they have not finished within the shutdown grace period (or the
// ctx deadline, whichever is sooner) the task context is cancelled and an
// error is returned. Cancellation is cooperative: a task that ignores its ctx
// keeps running in the background. Calling Shutdown again is a no-op.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	close(p.stop)

	p.logger.Info("Worker pool shutting down", "queued", len(p.queue), "active", p.active.Load())

	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownGrace)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("Worker pool stopped", "completed", p.completed.Load(), "callerRuns", p.callerRuns.Load())
		return nil
	case <-waitCtx.Done():
	}

	active := p.active.Load()
	queued := len(p.queue)
	p.cancel()
	p.logger.Warn("Worker pool drain timed out, cancelling tasks", "active", active, "queued", queued)
	return fmt.Errorf("worker pool forced to stop with %d running and %d queued task(s)", active, queued)
}

// spawnLocked starts a worker. Must be called with p.mu held.
func (p *Pool) spawnLocked(first Task) {
	p.workers++
	p.wg.Add(1)
	id := p.nextID.Add(1)
	go p.worker(id, first)
}

// worker runs first (if any), then pulls from the queue until it is closed
// and empty. Workers above the core count retire after IdleTimeout.
func (p *Pool) worker(id int64, first Task) {
	defer p.wg.Done()

	if first != nil {
		p.run(p.ctx, first)
	}

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				p.retire(id, true)
				return
			}
			p.run(p.ctx, task)
		case <-idle.C:
			if p.retire(id, false) {
				return
			}
		}
		idle.Reset(p.cfg.IdleTimeout)
	}
}

// retire removes a worker from the live count. Unless forced, it only
// succeeds while the pool has more than CoreWorkers workers.
func (p *Pool) retire(id int64, force bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !force && p.workers <= p.cfg.CoreWorkers {
		return false
	}
	p.workers--
	if !force {
		p.logger.Debug("Idle worker retired", "worker", id, "workers", p.workers)
	}
	return true
}

// run executes a task, containing any panic so the worker survives.
func (p *Pool) run(ctx context.Context, task Task) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.metrics != nil {
				p.metrics.RecordPoolPanic(context.Background())
			}
			p.logger.Error("Task panicked", "panic", r)
		}
	}()

	task(ctx)
}

// reportQueueSize periodically reports queue and worker gauges.
func (p *Pool) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			stats := p.Stats()
			p.metrics.RecordPoolQueueSize(context.Background(), int64(stats.QueueDepth))
			p.metrics.RecordPoolWorkers(context.Background(), int64(stats.Workers), stats.Active)
		}
	}
}
