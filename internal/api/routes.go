package api

import (
	"net/http"
	"reportbot/internal/health"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Bot           ChatBot
	Mailbox       MailboxReader
	Outbox        OutboxStatter // optional
	Metrics       HTTPMetrics   // optional
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates the HTTP chat gateway.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Bot, cfg.Mailbox, cfg.Outbox, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes are unauthenticated.
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	auth := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/chats/{chatId}/messages", auth(http.HandlerFunc(handler.PostMessage)))
	mux.Handle("POST /v1/chats/{chatId}/callbacks", auth(http.HandlerFunc(handler.PostCallback)))
	mux.Handle("GET /v1/chats/{chatId}/messages", auth(http.HandlerFunc(handler.DrainMessages)))
	mux.Handle("GET /v1/status", auth(http.HandlerFunc(handler.Status)))

	// Outermost first: recovery wraps logging wraps metrics.
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
