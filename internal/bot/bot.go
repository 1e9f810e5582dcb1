// Package bot routes chat commands and button callbacks to the report
// services. Every data operation runs through the task dispatcher; the bot
// only sends a progress message and leaves the answer to the outcome
// reporter.
package bot

import (
	"context"
	"log/slog"
	"reportbot/internal/bootstrap"
	"reportbot/internal/dispatch"
	"reportbot/internal/messenger"
	"reportbot/internal/report"
	"reportbot/internal/service"
	"reportbot/internal/workerpool"
	"strings"
)

// Backend is the part of the running application the bot talks to. The
// bootstrap orchestrator implements it.
type Backend interface {
	Stage() bootstrap.Stage
	IsReady() bool
	Services() (*service.Set, error)
	Dispatcher() (*dispatch.Dispatcher, error)
	Pool() (*workerpool.Pool, error)
}

// Status is a snapshot of the bot and its worker pool.
type Status struct {
	Stage string           `json:"stage"`
	Ready bool             `json:"ready"`
	Pool  workerpool.Stats `json:"pool"`
}

// Bot answers chat input.
type Bot struct {
	backend   Backend
	chat      messenger.Messenger
	formatter *report.Formatter
	cfg       Config
	logger    *slog.Logger
}

// New creates a bot replying through chat.
func New(backend Backend, chat messenger.Messenger, formatter *report.Formatter, cfg Config) *Bot {
	return &Bot{
		backend:   backend,
		chat:      chat,
		formatter: formatter,
		cfg:       cfg.withDefaults(),
		logger:    slog.With("component", "bot"),
	}
}

// HandleMessage answers a text message: a slash command or the text of a
// main-menu button. Data operations return once they are dispatched. An
// error means the message could not be handled at all, for example because
// the services are not ready yet.
func (b *Bot) HandleMessage(ctx context.Context, chatID int64, text string) error {
	command := normalize(text)
	b.logger.Debug("Message received", "chat_id", chatID, "command", command)

	switch command {
	case "/start":
		return b.chat.SendMenu(ctx, chatID, b.formatter.Start(), mainKeyboard())
	case "/help", "help":
		return b.chat.SendText(ctx, chatID, b.formatter.Help())
	case "/queries", "queries":
		return b.chat.SendMenu(ctx, chatID, b.formatter.QueriesMenu(), queryKeyboard())
	case "/charts", "charts":
		return b.chat.SendMenu(ctx, chatID, b.formatter.ChartsMenu(), chartKeyboard())
	case "/status", "status":
		st := b.Status()
		return b.chat.SendText(ctx, chatID, b.formatter.Status(st.Stage, st.Ready,
			st.Pool.Workers, int(st.Pool.Active), st.Pool.QueueDepth, uint64(st.Pool.Completed)))
	case "/load", "load data":
		return b.load(ctx, chatID)
	case "/stats", "statistics":
		return b.statistics(ctx, chatID)
	case "/export":
		return b.export(ctx, chatID)
	default:
		return b.chat.SendText(ctx, chatID, b.formatter.Unknown())
	}
}

// HandleCallback answers an inline button press.
func (b *Bot) HandleCallback(ctx context.Context, chatID int64, data string) error {
	b.logger.Debug("Callback received", "chat_id", chatID, "data", data)

	switch data {
	case CallbackExpenditure:
		return b.expenditure(ctx, chatID)
	case CallbackMathSchools:
		return b.mathSchools(ctx, chatID)
	case CallbackStudentStats:
		return b.studentStats(ctx, chatID)
	case CallbackAllQueries:
		return b.allQueries(ctx, chatID)
	case CallbackChartStudent:
		return b.studentsChart(ctx, chatID)
	case CallbackDataReload:
		return b.load(ctx, chatID)
	case CallbackDataStats:
		return b.statistics(ctx, chatID)
	default:
		return b.chat.SendText(ctx, chatID, "Unknown request. Send /help for the list of commands.")
	}
}

// Status reports the bootstrap stage and pool counters. Pool counters are
// zero until the pool exists.
func (b *Bot) Status() Status {
	st := Status{
		Stage: b.backend.Stage().String(),
		Ready: b.backend.IsReady(),
	}
	if pool, err := b.backend.Pool(); err == nil {
		st.Pool = pool.Stats()
	}
	return st
}

// normalize lowercases text and strips a "@botname" suffix from commands.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(text, "/") {
		if fields := strings.Fields(text); len(fields) > 0 {
			text = fields[0]
		}
		text, _, _ = strings.Cut(text, "@")
	}
	return text
}
