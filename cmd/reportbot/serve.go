package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reportbot/internal/api"
	"reportbot/internal/bot"
	"reportbot/internal/config"
	"reportbot/internal/health"
	"reportbot/internal/messenger"
	"reportbot/internal/observability"
	"syscall"
	"time"
)

func serve(ctx context.Context, flags *globalFlags) error {
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	a, err := newApp(flags, metrics)
	if err != nil {
		return err
	}
	svcCfg := config.LoadServiceConfig(a.src)
	msgCfg := messenger.LoadConfig(a.src)

	// Replies always land in the mailbox; the webhook outbox is optional.
	mailbox := messenger.NewMailbox(msgCfg.MailboxCapacity)
	sink := messenger.Sink(mailbox)
	var outbox *messenger.Outbox
	if msgCfg.Outbox.Enabled() {
		outbox = messenger.NewOutbox(msgCfg.Outbox, metrics)
		sink = messenger.Tee(mailbox, outbox)
	} else {
		slog.Info("Webhook outbox disabled, replies are served from the mailbox only")
	}

	if err := a.initialize(ctx); err != nil {
		closeOutbox(outbox, 5*time.Second)
		return err
	}
	slog.Info("Bootstrap complete", "stage", a.orch.Stage().String())

	healthChecker := health.NewChecker(a.orch)
	var outboxStats api.OutboxStatter
	if outbox != nil {
		outboxStats = outbox
		healthChecker.AddOptional("outbox", func(context.Context) error {
			if outbox.Stats().BreakerOpen {
				return errors.New("webhook circuit open")
			}
			return nil
		})
	}

	chatBot := bot.New(a.orch, messenger.New(sink), a.formatter, bot.LoadConfig(a.src))

	router := api.NewRouter(api.RouterConfig{
		Bot:           chatBot,
		Mailbox:       mailbox,
		Outbox:        outboxStats,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled, no server.api_key configured")
	}

	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 2)
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case runErr = <-serverErr:
		slog.Error("Server failed", "error", runErr)
	}

	deadline, cancel := context.WithTimeout(context.Background(), svcCfg.ShutdownTimeout)
	defer cancel()

	// Phase 1: mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()
	if runErr == nil && svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		select {
		case <-time.After(svcCfg.ShutdownDrainWait):
		case <-deadline.Done():
		}
	}

	// Phase 2: stop accepting connections, finish in-flight requests
	slog.Info("Stopping API server")
	if err := apiServer.Shutdown(deadline); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("API server shutdown error", "error", err)
	}

	// Phase 3: drain dispatched tasks and close the database
	slog.Info("Stopping bootstrap orchestrator")
	if err := a.shutdown(deadline); err != nil {
		slog.Warn("Bootstrap shutdown finished with errors", "error", err)
	}

	// Phase 4: deliver queued webhook replies
	if outbox != nil {
		if err := outbox.Close(deadline); err != nil {
			slog.Warn("Outbox shutdown error", "error", err)
		}
		stats := outbox.Stats()
		slog.Info("Outbox stats", "delivered", stats.Delivered, "failed", stats.Failed, "dropped", stats.Dropped)
	}

	// Phase 5: stop the metrics server
	if err := metricsServer.Shutdown(deadline); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return runErr
}

func closeOutbox(outbox *messenger.Outbox, timeout time.Duration) {
	if outbox == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := outbox.Close(ctx); err != nil {
		slog.Warn("Outbox shutdown error", "error", err)
	}
}
