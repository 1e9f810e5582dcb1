package dispatch

import (
	"context"
)

// Batch tracks a fan-out of independent tasks.
type Batch struct {
	handles []*Handle
	done    chan struct{}
	agg     Aggregate
}

// FanOut dispatches every spec and, once all of them have a terminal
// outcome, delivers the aggregate to onDone. Each outcome is also reported
// to each as it happens. A failure in one task never affects the others;
// the aggregate always holds len(specs) outcomes in submission order.
// Collection runs outside the pool so a saturated pool cannot stall it.
func (d *Dispatcher) FanOut(ctx context.Context, specs []Spec, each OutcomeReporter, onDone AggregateFunc) *Batch {
	b := &Batch{
		handles: make([]*Handle, len(specs)),
		done:    make(chan struct{}),
	}
	for i, spec := range specs {
		b.handles[i] = d.Dispatch(ctx, spec, each)
	}

	go b.collect(context.WithoutCancel(ctx), d, onDone)
	return b
}

func (b *Batch) collect(ctx context.Context, d *Dispatcher, onDone AggregateFunc) {
	outcomes := make([]Outcome, len(b.handles))

	// Every handle carries its own timer, so each wait is bounded.
	for i, h := range b.handles {
		<-h.Done()
		outcomes[i], _ = h.Outcome()
	}

	b.agg = newAggregate(outcomes)
	d.logger.Debug("Fan-out finished", "tasks", len(outcomes), "succeeded", b.agg.Succeeded, "failed", b.agg.Failed)

	if onDone != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("Aggregate reporter panicked", "panic", r)
				}
			}()
			onDone(ctx, b.agg)
		}()
	}
	close(b.done)
}

// Handles returns the per-task handles.
func (b *Batch) Handles() []*Handle { return b.handles }

// Done is closed after the aggregate has been delivered.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the aggregate is ready or ctx is done.
func (b *Batch) Wait(ctx context.Context) (Aggregate, error) {
	select {
	case <-b.done:
		return b.agg, nil
	case <-ctx.Done():
		return Aggregate{}, ctx.Err()
	}
}

// Cancel cancels every task in the batch that has not finished yet.
func (b *Batch) Cancel() {
	for _, h := range b.handles {
		h.Cancel()
	}
}

// RunAll fans out specs and blocks until the aggregate is ready. If ctx ends
// first the remaining tasks are cancelled and the partial wait is abandoned.
func (d *Dispatcher) RunAll(ctx context.Context, specs []Spec) (Aggregate, error) {
	b := d.FanOut(ctx, specs, nil, nil)
	agg, err := b.Wait(ctx)
	if err != nil {
		b.Cancel()
		return Aggregate{}, err
	}
	return agg, nil
}
