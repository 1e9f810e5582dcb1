package observability

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds every instrument of the service. It implements the recorder
// interfaces of the worker pool, the dispatcher, the bootstrap orchestrator,
// the outbox and the HTTP middleware.
type Metrics struct {
	meter metric.Meter

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter
	HTTPActive          metric.Int64UpDownCounter

	TasksTotal   metric.Int64Counter
	TaskDuration metric.Float64Histogram

	PoolQueueSize  metric.Int64Gauge
	PoolWorkers    metric.Int64Gauge
	PoolActive     metric.Int64Gauge
	PoolCallerRuns metric.Int64Counter
	PoolPanics     metric.Int64Counter

	BootstrapStage metric.Int64Gauge

	OutboxDuration  metric.Float64Histogram
	OutboxDelivered metric.Int64Counter
	OutboxFailed    metric.Int64Counter
	OutboxDropped   metric.Int64Counter
	OutboxQueueSize metric.Int64Gauge
}

// NewMetrics creates the instruments on a fresh registry and returns the
// scrape handler for it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m := &Metrics{meter: provider.Meter("reportbot")}
	if err := m.init(); err != nil {
		return nil, nil, err
	}
	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func (m *Metrics) init() error {
	var err error
	counter := func(dst *metric.Int64Counter, name, desc string) {
		if err == nil {
			*dst, err = m.meter.Int64Counter(name, metric.WithDescription(desc))
		}
	}
	gauge := func(dst *metric.Int64Gauge, name, desc string) {
		if err == nil {
			*dst, err = m.meter.Int64Gauge(name, metric.WithDescription(desc))
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string, bounds ...float64) {
		if err == nil {
			*dst, err = m.meter.Float64Histogram(name,
				metric.WithDescription(desc),
				metric.WithUnit("s"),
				metric.WithExplicitBucketBoundaries(bounds...),
			)
		}
	}

	histogram(&m.HTTPRequestDuration, "http_request_duration_seconds", "HTTP request latency in seconds",
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)
	counter(&m.HTTPRequestsTotal, "http_requests_total", "Total number of HTTP requests")
	counter(&m.HTTPErrorsTotal, "http_errors_total", "Total number of HTTP errors (4xx and 5xx)")
	if err == nil {
		m.HTTPActive, err = m.meter.Int64UpDownCounter("http_requests_active",
			metric.WithDescription("HTTP requests in flight"))
	}

	counter(&m.TasksTotal, "tasks_total", "Dispatched tasks by terminal state")
	histogram(&m.TaskDuration, "task_duration_seconds", "Time from dispatch to outcome",
		0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60)

	gauge(&m.PoolQueueSize, "pool_queue_size", "Tasks waiting for a worker")
	gauge(&m.PoolWorkers, "pool_workers", "Live pool workers")
	gauge(&m.PoolActive, "pool_active", "Tasks executing right now")
	counter(&m.PoolCallerRuns, "pool_caller_runs_total", "Tasks run on the submitting goroutine")
	counter(&m.PoolPanics, "pool_panics_total", "Tasks that panicked")

	gauge(&m.BootstrapStage, "bootstrap_stage", "Current bootstrap stage number")

	histogram(&m.OutboxDuration, "outbox_delivery_duration_seconds", "Webhook delivery latency in seconds",
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10)
	counter(&m.OutboxDelivered, "outbox_delivered_total", "Messages delivered to the webhook")
	counter(&m.OutboxFailed, "outbox_failed_total", "Messages that failed after retries")
	counter(&m.OutboxDropped, "outbox_dropped_total", "Messages dropped (queue full or circuit open)")
	gauge(&m.OutboxQueueSize, "outbox_queue_size", "Messages waiting for delivery")

	return err
}

// RecordHTTPRequest records one finished request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(methodAttr(method), pathAttr(path), statusAttr(statusCode))

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordHTTPActive adjusts the in-flight request count by delta.
func (m *Metrics) RecordHTTPActive(ctx context.Context, delta int64) {
	m.HTTPActive.Add(ctx, delta)
}

// RecordTaskOutcome records the terminal outcome of a dispatched task.
func (m *Metrics) RecordTaskOutcome(ctx context.Context, task, state string, durationSeconds float64) {
	m.TasksTotal.Add(ctx, 1, metric.WithAttributes(taskAttr(task), stateAttr(state)))
	m.TaskDuration.Record(ctx, durationSeconds, metric.WithAttributes(taskAttr(task)))
}

func (m *Metrics) RecordPoolQueueSize(ctx context.Context, size int64) {
	m.PoolQueueSize.Record(ctx, size)
}

func (m *Metrics) RecordPoolWorkers(ctx context.Context, workers, active int64) {
	m.PoolWorkers.Record(ctx, workers)
	m.PoolActive.Record(ctx, active)
}

func (m *Metrics) RecordPoolCallerRuns(ctx context.Context) {
	m.PoolCallerRuns.Add(ctx, 1)
}

func (m *Metrics) RecordPoolPanic(ctx context.Context) {
	m.PoolPanics.Add(ctx, 1)
}

// RecordBootstrapStage records the stage the orchestrator just entered.
func (m *Metrics) RecordBootstrapStage(ctx context.Context, stage int64) {
	m.BootstrapStage.Record(ctx, stage)
}

func (m *Metrics) RecordOutboxDelivered(ctx context.Context, durationSeconds float64) {
	m.OutboxDelivered.Add(ctx, 1)
	m.OutboxDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordOutboxFailed(ctx context.Context) {
	m.OutboxFailed.Add(ctx, 1)
}

func (m *Metrics) RecordOutboxDropped(ctx context.Context) {
	m.OutboxDropped.Add(ctx, 1)
}

func (m *Metrics) RecordOutboxQueueSize(ctx context.Context, size int64) {
	m.OutboxQueueSize.Record(ctx, size)
}
