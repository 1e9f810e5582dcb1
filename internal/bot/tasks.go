package bot

import (
	"context"
	"fmt"
	"reportbot/internal/dispatch"
	"reportbot/internal/service"
	"time"
)

const (
	taskExpenditure  = "query_expenditure"
	taskMathSchools  = "query_math_schools"
	taskStudentStats = "query_student_stats"
	taskStudentBrief = "query_student_brief"
	taskChart        = "chart_students"
	taskLoad         = "data_load"
	taskStats        = "data_stats"
	taskExport       = "data_export"
)

// task is one chat-triggered dispatch.
type task struct {
	name     string
	progress string // sent before dispatch
	timeout  time.Duration
	timedOut string
	hint     string // appended to failure messages
	op       dispatch.Operation
	deliver  func(ctx context.Context, result any) error
}

// run sends the progress message and dispatches t. It does not wait for
// the outcome.
func (b *Bot) run(ctx context.Context, chatID int64, t task) error {
	d, err := b.backend.Dispatcher()
	if err != nil {
		return err
	}
	if t.progress != "" {
		if err := b.chat.SendText(ctx, chatID, t.progress); err != nil {
			b.logger.Warn("Progress message failed", "chat_id", chatID, "task", t.name, "error", err)
		}
	}
	d.Dispatch(ctx, t.spec(), &chatReporter{bot: b, chatID: chatID, task: t})
	return nil
}

func (t task) spec() dispatch.Spec {
	return dispatch.Spec{Name: t.name, Timeout: t.timeout, Op: t.op, TimeoutMessage: t.timedOut}
}

// chatReporter turns a task outcome into chat messages.
type chatReporter struct {
	bot    *Bot
	chatID int64
	task   task
}

func (r *chatReporter) Report(ctx context.Context, o dispatch.Outcome) {
	var err error
	if o.Succeeded() {
		err = r.task.deliver(ctx, o.Result)
	} else {
		msg := o.Message
		if r.task.hint != "" && o.State == dispatch.StateFailed {
			msg += "\n\n" + r.task.hint
		}
		err = r.bot.chat.SendText(ctx, r.chatID, msg)
	}
	if err != nil {
		r.bot.logger.Warn("Reply failed", "chat_id", r.chatID, "task", o.Name, "state", o.State.String(), "error", err)
	}
}

func (b *Bot) services() (*service.Set, error) {
	return b.backend.Services()
}

func (b *Bot) sendResult(chatID int64) func(ctx context.Context, result any) error {
	return func(ctx context.Context, result any) error {
		return b.chat.SendText(ctx, chatID, fmt.Sprint(result))
	}
}

func (b *Bot) expenditure(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskExpenditure,
		progress: "Query 1: average expenditure\n\nRunning the query, this can take a few seconds.",
		timeout:  b.cfg.QueryTimeout,
		timedOut: "The expenditure query took too long.\n\nPlease try again later.",
		hint:     "Try loading the data with /load",
		op: func(ctx context.Context) (any, error) {
			return svc.Statistics.ExpenditureReport(ctx)
		},
		deliver: b.sendResult(chatID),
	})
}

func (b *Bot) mathSchools(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskMathSchools,
		progress: "Query 2: best math schools\n\nRunning the query.",
		timeout:  b.cfg.QueryTimeout,
		timedOut: "The math schools query took too long.\n\nPlease try again later.",
		hint:     "Check that the database has schools of these sizes.",
		op: func(ctx context.Context) (any, error) {
			return svc.Statistics.MathSchoolsReport(ctx)
		},
		deliver: b.sendResult(chatID),
	})
}

func (b *Bot) studentStats(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskStudentStats,
		progress: "Query 3: student statistics by county\n\nFetching the data.",
		timeout:  b.cfg.QueryTimeout,
		timedOut: "The student statistics query took too long.\n\nPlease try again later.",
		hint:     "Try loading the data with /load",
		op: func(ctx context.Context) (any, error) {
			return svc.Statistics.StudentStatsReport(ctx)
		},
		deliver: b.sendResult(chatID),
	})
}

// allQueries runs the three queries side by side and closes with a summary
// once every one has an outcome.
func (b *Bot) allQueries(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	d, err := b.backend.Dispatcher()
	if err != nil {
		return err
	}
	if err := b.chat.SendText(ctx, chatID, "All queries\n\nRunning every query in parallel."); err != nil {
		b.logger.Warn("Progress message failed", "chat_id", chatID, "task", CallbackAllQueries, "error", err)
	}

	specs := []dispatch.Spec{
		{Name: taskExpenditure, Timeout: b.cfg.QueryTimeout, Op: func(ctx context.Context) (any, error) {
			return svc.Statistics.ExpenditureReport(ctx)
		}},
		{Name: taskMathSchools, Timeout: b.cfg.QueryTimeout, Op: func(ctx context.Context) (any, error) {
			return svc.Statistics.MathSchoolsReport(ctx)
		}},
		{Name: taskStudentBrief, Timeout: b.cfg.QueryTimeout, Op: func(ctx context.Context) (any, error) {
			return svc.Statistics.StudentStatsBrief(ctx, b.cfg.BriefTop)
		}},
	}
	numbers := map[string]int{taskExpenditure: 1, taskMathSchools: 2, taskStudentBrief: 3}

	each := dispatch.ReporterFunc(func(ctx context.Context, o dispatch.Outcome) {
		n := numbers[o.Name]
		text := fmt.Sprintf("Query %d failed: %s", n, o.Message)
		if o.Succeeded() {
			text = fmt.Sprintf("Query %d\n\n%v", n, o.Result)
		}
		if err := b.chat.SendText(ctx, chatID, text); err != nil {
			b.logger.Warn("Reply failed", "chat_id", chatID, "task", o.Name, "error", err)
		}
	})
	done := func(ctx context.Context, agg dispatch.Aggregate) {
		if err := b.chat.SendText(ctx, chatID, b.formatter.AllQueriesDone(agg.Failed)); err != nil {
			b.logger.Warn("Reply failed", "chat_id", chatID, "task", CallbackAllQueries, "error", err)
		}
	}
	d.FanOut(ctx, specs, each, done)
	return nil
}

func (b *Bot) studentsChart(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskChart,
		progress: "Building the chart of average students by county.",
		timeout:  b.cfg.ChartTimeout,
		timedOut: "Building the chart took too long.",
		op: func(ctx context.Context) (any, error) {
			return svc.Charts.AverageStudents(ctx)
		},
		deliver: func(ctx context.Context, result any) error {
			chart := result.(service.Chart)
			return b.chat.SendPhoto(ctx, chatID, chart.PNG, chart.Caption)
		},
	})
}

func (b *Bot) load(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskLoad,
		progress: "Loading data from the CSV file.",
		timeout:  b.cfg.LoadTimeout,
		timedOut: "Loading the data took too long.",
		op: func(ctx context.Context) (any, error) {
			return svc.Loader.LoadFile(ctx, "")
		},
		deliver: func(ctx context.Context, result any) error {
			res := result.(service.LoadResult)
			return b.chat.SendText(ctx, chatID, b.formatter.Loaded(res.Loaded, res.Skipped))
		},
	})
}

func (b *Bot) statistics(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskStats,
		progress: "Collecting database statistics.",
		timeout:  b.cfg.StatsTimeout,
		timedOut: "Collecting the statistics took too long.",
		op: func(ctx context.Context) (any, error) {
			return svc.Statistics.SummaryReport(ctx)
		},
		deliver: b.sendResult(chatID),
	})
}

func (b *Bot) export(ctx context.Context, chatID int64) error {
	svc, err := b.services()
	if err != nil {
		return err
	}
	return b.run(ctx, chatID, task{
		name:     taskExport,
		progress: "Exporting database statistics.",
		timeout:  b.cfg.StatsTimeout,
		timedOut: "The export took too long.",
		op: func(ctx context.Context) (any, error) {
			return svc.Statistics.SummaryYAML(ctx)
		},
		deliver: func(ctx context.Context, result any) error {
			return b.chat.SendText(ctx, chatID, string(result.([]byte)))
		},
	})
}
