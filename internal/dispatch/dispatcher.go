// Package dispatch runs externally triggered operations on the worker pool
// with a timeout, cancellation, and uniform error-to-message mapping.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reportbot/internal/apperrors"
	"reportbot/internal/workerpool"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Operation is one unit of dispatchable work. It should return promptly once
// ctx is cancelled; cancellation is cooperative.
type Operation func(ctx context.Context) (any, error)

// Spec describes one dispatch.
type Spec struct {
	Name           string        // task name used in logs, metrics and outcomes
	Timeout        time.Duration // 0 uses Config.DefaultTimeout
	Op             Operation
	TimeoutMessage string // overrides the mapped timeout message
}

// Submitter is the part of the worker pool the dispatcher needs.
type Submitter interface {
	Submit(task workerpool.Task) (bool, error)
}

// MetricsRecorder is an optional interface for recording dispatch metrics.
type MetricsRecorder interface {
	RecordTaskOutcome(ctx context.Context, task, state string, durationSeconds float64)
}

// Dispatcher submits operations to a pool and guarantees exactly one
// terminal outcome per dispatch.
type Dispatcher struct {
	pool    Submitter
	cfg     Config
	logger  *slog.Logger
	metrics MetricsRecorder
}

// New creates a dispatcher on top of pool.
func New(pool Submitter, cfg Config, metrics MetricsRecorder) *Dispatcher {
	return &Dispatcher{
		pool:    pool,
		cfg:     cfg.withDefaults(),
		logger:  slog.With("component", "dispatch"),
		metrics: metrics,
	}
}

// Dispatch submits spec.Op and returns immediately. The outcome is delivered
// to reporter exactly once: Completed with the op's result, Failed with a
// mapped message, TimedOut when spec.Timeout elapses first, or Cancelled when
// the pool rejects the task or the handle is cancelled. The caller only
// blocks while the pool is saturated and runs the task on the caller.
//
// A timed-out or cancelled op is signalled through its ctx and may keep
// running until it notices; its late result is discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, spec Spec, reporter OutcomeReporter) *Handle {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}

	// The task outlives the request that triggered it, so only values are inherited.
	detached := context.WithoutCancel(ctx)
	taskCtx, cancel := context.WithCancel(detached)

	h := &Handle{
		id:        uuid.NewString(),
		name:      spec.Name,
		start:     time.Now(),
		d:         d,
		reporter:  reporter,
		reportCtx: detached,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if spec.Op == nil {
		err := apperrors.TaskExecution(spec.Name, errors.New("no operation"))
		h.finish(Outcome{State: StateFailed, Err: err, Message: d.cfg.MapError(err)})
		return h
	}

	h.mu.Lock()
	h.timer = time.AfterFunc(timeout, func() { h.expire(timeout, spec.TimeoutMessage) })
	h.mu.Unlock()

	d.logger.Debug("Task dispatched", "task", spec.Name, "id", h.id, "timeout", timeout)

	_, err := d.pool.Submit(func(poolCtx context.Context) {
		h.execute(poolCtx, taskCtx, spec.Op)
	})
	if err != nil {
		h.finish(Outcome{State: StateCancelled, Err: err, Message: d.cfg.MapError(err)})
	}
	return h
}

// Handle tracks one dispatched task.
type Handle struct {
	id        string
	name      string
	start     time.Time
	d         *Dispatcher
	reporter  OutcomeReporter
	reportCtx context.Context
	cancel    context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer

	decided atomic.Bool
	outcome Outcome
	done    chan struct{}
}

// ID returns the task ID.
func (h *Handle) ID() string { return h.id }

// Name returns the task name.
func (h *Handle) Name() string { return h.name }

// Done is closed after the outcome has been reported.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome returns the terminal outcome once Done is closed.
func (h *Handle) Outcome() (Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the outcome is reported or ctx is done.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel reports the task as cancelled and signals its ctx.
// It returns false if the outcome was already decided.
func (h *Handle) Cancel() bool {
	err := fmt.Errorf("task %s: %w", h.name, context.Canceled)
	return h.finish(Outcome{State: StateCancelled, Err: err, Message: h.d.cfg.MapError(err)})
}

// execute runs on a pool worker, or on the submitter when the pool is saturated.
func (h *Handle) execute(poolCtx, taskCtx context.Context, op Operation) {
	// A forced pool shutdown cancels the task as well.
	stop := context.AfterFunc(poolCtx, h.cancel)
	defer stop()

	if err := taskCtx.Err(); err != nil {
		h.finish(Outcome{State: StateCancelled, Err: err, Message: h.d.cfg.MapError(err)})
		return
	}

	ranOnCaller := workerpool.RanOnCaller(poolCtx)
	result, err := call(taskCtx, op)

	var decided bool
	switch {
	case err == nil:
		decided = h.finish(Outcome{State: StateCompleted, Result: result, RanOnCaller: ranOnCaller})
	case poolCtx.Err() != nil:
		decided = h.finish(Outcome{State: StateCancelled, Err: err, Message: h.d.cfg.MapError(poolCtx.Err()), RanOnCaller: ranOnCaller})
	default:
		decided = h.finish(Outcome{
			State:       StateFailed,
			Err:         apperrors.TaskExecution(h.name, err),
			Message:     h.d.cfg.MapError(err),
			RanOnCaller: ranOnCaller,
		})
	}

	if !decided {
		h.d.logger.Debug("Late task result discarded", "task", h.name, "id", h.id, "error", err)
	}
}

// call invokes op, converting a panic into an error.
func call(ctx context.Context, op Operation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return op(ctx)
}

// expire fires when the timeout elapses before an outcome was decided.
func (h *Handle) expire(timeout time.Duration, message string) {
	err := apperrors.TaskTimeout(h.name, context.DeadlineExceeded)
	if message == "" {
		message = h.d.cfg.MapError(err)
	}
	if h.finish(Outcome{State: StateTimedOut, Err: err, Message: message}) {
		h.d.logger.Warn("Task timed out", "task", h.name, "id", h.id, "timeout", timeout)
	}
}

// finish decides the outcome. Only the first caller wins; it stops the
// timer, cancels the task ctx, reports, and closes done.
func (h *Handle) finish(o Outcome) bool {
	if !h.decided.CompareAndSwap(false, true) {
		return false
	}

	h.mu.Lock()
	timer := h.timer
	h.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	h.cancel()

	o.TaskID = h.id
	o.Name = h.name
	o.Duration = time.Since(h.start)
	h.outcome = o

	if h.d.metrics != nil {
		h.d.metrics.RecordTaskOutcome(h.reportCtx, h.name, o.State.String(), o.Duration.Seconds())
	}
	if o.State == StateFailed {
		h.d.logger.Warn("Task failed", "task", h.name, "id", h.id, "error", o.Err)
	} else {
		h.d.logger.Debug("Task finished", "task", h.name, "id", h.id, "state", o.State.String(), "duration", o.Duration)
	}

	h.report(o)
	close(h.done)
	return true
}

// report hands the outcome to the reporter, containing reporter panics.
func (h *Handle) report(o Outcome) {
	if h.reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.d.logger.Error("Outcome reporter panicked", "task", h.name, "id", h.id, "panic", r)
		}
	}()
	h.reporter.Report(h.reportCtx, o)
}
