package dispatch

import (
	"context"
	"time"
)

// State is the terminal state of a dispatched task.
type State int

const (
	StateCompleted State = iota + 1
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the one terminal result delivered for a dispatched task.
type Outcome struct {
	TaskID      string
	Name        string
	State       State
	Result      any           // set when State is StateCompleted
	Message     string        // user-facing text for every other state
	Err         error         // classified error for every other state
	Duration    time.Duration // dispatch to decision
	RanOnCaller bool          // executed on the submitting goroutine (pool saturated)
}

// Succeeded reports whether the task completed normally.
func (o Outcome) Succeeded() bool {
	return o.State == StateCompleted
}

// OutcomeReporter receives the terminal outcome of a dispatched task.
// It is the only channel through which a task's result leaves the
// dispatcher; the dispatcher knows nothing about how it is delivered.
type OutcomeReporter interface {
	Report(ctx context.Context, outcome Outcome)
}

// ReporterFunc adapts a function to OutcomeReporter.
type ReporterFunc func(ctx context.Context, outcome Outcome)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, outcome Outcome) {
	f(ctx, outcome)
}

// Aggregate holds every outcome of a fan-out batch, in submission order.
type Aggregate struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int // any non-completed state
}

// AllSucceeded reports whether every task in the batch completed.
func (a Aggregate) AllSucceeded() bool {
	return a.Failed == 0
}

func newAggregate(outcomes []Outcome) Aggregate {
	agg := Aggregate{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Succeeded() {
			agg.Succeeded++
		} else {
			agg.Failed++
		}
	}
	return agg
}

// AggregateFunc receives the aggregate of a fan-out batch.
type AggregateFunc func(ctx context.Context, agg Aggregate)
