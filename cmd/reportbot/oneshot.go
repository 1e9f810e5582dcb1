package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"reportbot/internal/bot"
	"reportbot/internal/dispatch"
	"reportbot/internal/service"
	"syscall"
	"time"
)

// oneShotShutdownTimeout bounds cleanup after a load or report run.
const oneShotShutdownTimeout = 15 * time.Second

// withApp bootstraps an app, runs fn and shuts the app down again.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(ctx context.Context, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(flags, nil)
	if err != nil {
		return err
	}

	runErr := a.initialize(ctx)
	if runErr == nil {
		runErr = fn(ctx, a)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), oneShotShutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		slog.Warn("Shutdown finished with errors", "error", err)
	}
	return runErr
}

func runLoad(ctx context.Context, flags *globalFlags, file string, out io.Writer) error {
	return withApp(ctx, flags, func(ctx context.Context, a *app) error {
		services, err := a.orch.Services()
		if err != nil {
			return err
		}
		d, err := a.orch.Dispatcher()
		if err != nil {
			return err
		}

		cfg := bot.LoadConfig(a.src)
		h := d.Dispatch(ctx, dispatch.Spec{
			Name:           "data_load",
			Timeout:        cfg.LoadTimeout,
			TimeoutMessage: "Loading the data took too long.",
			Op: func(ctx context.Context) (any, error) {
				return services.Loader.LoadFile(ctx, file)
			},
		}, nil)

		o, err := h.Wait(ctx)
		if err != nil {
			return err
		}
		if !o.Succeeded() {
			return fmt.Errorf("load %s: %s", o.State, o.Message)
		}
		res := o.Result.(service.LoadResult)
		_, err = fmt.Fprintln(out, a.formatter.Loaded(res.Loaded, res.Skipped))
		return err
	})
}

func runReport(ctx context.Context, flags *globalFlags, out io.Writer) error {
	return withApp(ctx, flags, func(ctx context.Context, a *app) error {
		services, err := a.orch.Services()
		if err != nil {
			return err
		}
		d, err := a.orch.Dispatcher()
		if err != nil {
			return err
		}

		timeout := bot.LoadConfig(a.src).QueryTimeout
		stats := services.Statistics
		specs := []dispatch.Spec{
			{Name: "query_expenditure", Timeout: timeout, Op: textOp(stats.ExpenditureReport)},
			{Name: "query_math_schools", Timeout: timeout, Op: textOp(stats.MathSchoolsReport)},
			{Name: "query_student_stats", Timeout: timeout, Op: textOp(stats.StudentStatsReport)},
			{Name: "data_stats", Timeout: timeout, Op: textOp(stats.SummaryReport)},
		}

		agg, err := d.RunAll(ctx, specs)
		if err != nil {
			return err
		}
		for _, o := range agg.Outcomes {
			if o.Succeeded() {
				fmt.Fprintf(out, "%v\n\n", o.Result)
				continue
			}
			fmt.Fprintf(out, "%s failed: %s\n\n", o.Name, o.Message)
		}
		if agg.Failed > 0 {
			return fmt.Errorf("%d of %d queries failed", agg.Failed, len(agg.Outcomes))
		}
		return nil
	})
}

func textOp(fn func(context.Context) (string, error)) dispatch.Operation {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}
