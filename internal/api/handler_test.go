package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"reportbot/internal/apperrors"
	"reportbot/internal/bot"
	"reportbot/internal/health"
	"reportbot/internal/messenger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	chatID int64
	input  string
}

// fakeBot answers every message with an echo into the mailbox.
type fakeBot struct {
	mu        sync.Mutex
	messages  []call
	callbacks []call
	err       error
	mailbox   *messenger.Mailbox
	panics    bool
}

func (b *fakeBot) HandleMessage(ctx context.Context, chatID int64, text string) error {
	if b.panics {
		panic("bot exploded")
	}
	b.mu.Lock()
	b.messages = append(b.messages, call{chatID, text})
	b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	return messenger.New(b.mailbox).SendText(ctx, chatID, "echo: "+text)
}

func (b *fakeBot) HandleCallback(ctx context.Context, chatID int64, data string) error {
	b.mu.Lock()
	b.callbacks = append(b.callbacks, call{chatID, data})
	b.mu.Unlock()
	return b.err
}

func (b *fakeBot) Status() bot.Status {
	return bot.Status{Stage: "Running", Ready: true}
}

type readyFunc func(ctx context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

type fakeOutbox struct{}

func (fakeOutbox) Stats() messenger.OutboxStats {
	return messenger.OutboxStats{Delivered: 3, Dropped: 1}
}

type countingMetrics struct {
	requests atomic.Int64
	active   atomic.Int64
	lastPath atomic.Value
}

func (m *countingMetrics) RecordHTTPRequest(_ context.Context, _, path string, _ int, _ float64) {
	m.requests.Add(1)
	m.lastPath.Store(path)
}

func (m *countingMetrics) RecordHTTPActive(_ context.Context, delta int64) {
	m.active.Add(delta)
}

type fixture struct {
	router  http.Handler
	bot     *fakeBot
	mailbox *messenger.Mailbox
	checker *health.Checker
	metrics *countingMetrics
}

func newFixture(apiKey string, ready error) *fixture {
	mailbox := messenger.NewMailbox(10)
	b := &fakeBot{mailbox: mailbox}
	checker := health.NewChecker(readyFunc(func(context.Context) error { return ready }))
	metrics := &countingMetrics{}
	return &fixture{
		router: NewRouter(RouterConfig{
			Bot:           b,
			Mailbox:       mailbox,
			Outbox:        fakeOutbox{},
			Metrics:       metrics,
			HealthChecker: checker,
			APIKey:        apiKey,
		}),
		bot:     b,
		mailbox: mailbox,
		checker: checker,
		metrics: metrics,
	}
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestLivez(t *testing.T) {
	t.Parallel()
	f := newFixture("", errors.New("not ready"))

	w := f.do(http.MethodGet, "/livez", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp health.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, health.StatusHealthy, resp.Status)
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusOK, newFixture("", nil).do(http.MethodGet, "/readyz", "").Code)

	w := newFixture("", apperrors.NotReady("services", "SchemaReady")).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp health.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, health.StatusUnhealthy, resp.Checks["bootstrap"].Status)
}

func TestReadyz_ShuttingDown(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)

	f.checker.SetShuttingDown()

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)
}

func TestPostMessage_AndDrain(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)

	w := f.do(http.MethodPost, "/v1/chats/42/messages", `{"text":"/help"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted AcceptedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&accepted))
	assert.Equal(t, AcceptedResponse{ChatID: 42, Status: "accepted"}, accepted)
	assert.Equal(t, []call{{42, "/help"}}, f.bot.messages)

	w = f.do(http.MethodGet, "/v1/chats/42/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var drained MessagesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&drained))
	require.Len(t, drained.Messages, 1)
	assert.Equal(t, "echo: /help", drained.Messages[0].Text)
	assert.Equal(t, messenger.KindText, drained.Messages[0].Kind)

	w = f.do(http.MethodGet, "/v1/chats/42/messages", "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&drained))
	assert.Empty(t, drained.Messages)
}

func TestDrain_EmptyIsArray(t *testing.T) {
	t.Parallel()
	w := newFixture("", nil).do(http.MethodGet, "/v1/chats/9/messages", "")
	assert.JSONEq(t, `{"chat_id":9,"messages":[]}`, w.Body.String())
}

func TestPostCallback(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)

	w := f.do(http.MethodPost, "/v1/chats/-100/callbacks", `{"data":"query_all"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []call{{-100, "query_all"}}, f.bot.callbacks)
}

func TestPost_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		body string
	}{
		{"non-numeric chat", "/v1/chats/abc/messages", `{"text":"hi"}`},
		{"empty text", "/v1/chats/1/messages", `{"text":"  "}`},
		{"malformed json", "/v1/chats/1/messages", `{"text":`},
		{"unknown field", "/v1/chats/1/messages", `{"txt":"hi"}`},
		{"empty data", "/v1/chats/1/callbacks", `{"data":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture("", nil)
			w := f.do(http.MethodPost, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "validation", decodeError(t, w).Error)
			assert.Empty(t, f.bot.messages)
			assert.Empty(t, f.bot.callbacks)
		})
	}
}

func TestPost_MissingBody(t *testing.T) {
	t.Parallel()
	w := newFixture("", nil).do(http.MethodPost, "/v1/chats/1/messages", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body is required", decodeError(t, w).Message)
}

func TestPost_BotErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			"not ready",
			apperrors.NotReady("services", "StorageConnected"),
			http.StatusServiceUnavailable,
			"not_ready",
			"The service is still starting up. Please try again in a moment.",
		},
		{
			"conflict",
			apperrors.Conflict("load", "A data load is already running."),
			http.StatusConflict,
			"conflict",
			"A data load is already running.",
		},
		{
			"internal",
			apperrors.Internal("bot", errors.New("SELECT * FROM schools failed")),
			http.StatusInternalServerError,
			"internal",
			"An internal error occurred while processing the request.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture("", nil)
			f.bot.err = tt.err

			w := f.do(http.MethodPost, "/v1/chats/1/messages", `{"text":"/load"}`)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.message, resp.Message)
			assert.NotContains(t, w.Body.String(), "SELECT")
		})
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	w := newFixture("", nil).do(http.MethodGet, "/v1/status", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Running", resp["stage"])
	assert.Equal(t, true, resp["ready"])
	assert.Contains(t, resp, "pool")
	outbox, ok := resp["outbox"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), outbox["delivered"])
}

func TestAuth(t *testing.T) {
	t.Parallel()
	f := newFixture("s3cret", nil)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusOK},
		{"case-insensitive scheme", "bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			assert.Equal(t, tt.status, f.do(http.MethodGet, "/v1/status", "", headers...).Code)
		})
	}

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/livez", "").Code, "probes skip auth")
}

func TestContentType(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/chats/1/messages", strings.NewReader(`text=hi`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = f.do(http.MethodPost, "/v1/chats/1/messages", `{"text":"hi"}`, "Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	w := newFixture("", nil).do(http.MethodOptions, "/v1/chats/1/messages", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)
	f.bot.panics = true

	w := f.do(http.MethodPost, "/v1/chats/1/messages", `{"text":"boom"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w).Error)
}

func TestMetricsMiddleware(t *testing.T) {
	t.Parallel()
	f := newFixture("", nil)

	f.do(http.MethodGet, "/v1/chats/5/messages", "")
	f.do(http.MethodGet, "/livez", "")

	assert.Equal(t, int64(2), f.metrics.requests.Load())
	assert.Equal(t, int64(0), f.metrics.active.Load())
	assert.Equal(t, "/livez", f.metrics.lastPath.Load())
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusNotFound, newFixture("", nil).do(http.MethodGet, "/v1/jobs", "").Code)
}
