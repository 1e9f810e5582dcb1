package bootstrap

import (
	"context"
	"fmt"
	"reportbot/internal/apperrors"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Shutdown drains the worker pool, closes storage and resets every stage so
// a later InitializeAll starts from scratch. Cleanup failures are logged and
// kept for LastShutdownError; Shutdown itself never fails and is idempotent.
// The pool drain is bounded by the pool's grace period and ctx.
func (o *Orchestrator[C, D, R, S]) Shutdown(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shutdownLocked(ctx)
}

// LastShutdownError returns the cleanup failures of the most recent
// Shutdown, or nil.
func (o *Orchestrator[C, D, R, S]) LastShutdownError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastShutdownErr
}

func (o *Orchestrator[C, D, R, S]) shutdownLocked(ctx context.Context) {
	if o.Stage() == StageUninitialized && o.pool == nil && o.storage == nil {
		o.logger.Debug("Shutdown requested, nothing to clean up")
		o.lastShutdownErr = nil
		return
	}

	start := time.Now()
	from := o.Stage()
	o.transitionLocked(StageShuttingDown)
	o.logger.Info("Shutting down", "from", from.String())

	var result *multierror.Error

	if o.pool != nil {
		pool := o.pool
		if err := cleanup(func() error { return pool.Shutdown(ctx) }); err != nil {
			result = multierror.Append(result, apperrors.ShutdownCleanup("workerpool.shutdown", err))
		}
	}

	if o.storage != nil {
		storage := o.storage
		if err := cleanup(storage.Close); err != nil {
			result = multierror.Append(result, apperrors.ShutdownCleanup("storage.close", err))
		}
	}

	var (
		zeroD D
		zeroC C
		zeroR R
		zeroS S
	)
	o.deps = zeroD
	o.storage = nil
	o.conn = zeroC
	o.repos = zeroR
	o.services = zeroS
	o.pool = nil
	o.dispatcher = nil
	o.transitionLocked(StageUninitialized)

	o.lastShutdownErr = result.ErrorOrNil()
	if o.lastShutdownErr != nil {
		o.logger.Warn("Shutdown completed with cleanup errors", "duration", time.Since(start), "error", o.lastShutdownErr)
		return
	}
	o.logger.Info("Shutdown complete", "duration", time.Since(start))
}

// cleanup runs one cleanup step, turning a panic into an error so the
// remaining steps still run.
func cleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
