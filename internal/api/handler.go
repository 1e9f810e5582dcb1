// Package api is the HTTP chat gateway: it feeds chat input to the bot and
// lets clients poll the replies.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reportbot/internal/apperrors"
	"reportbot/internal/bot"
	"reportbot/internal/health"
	"reportbot/internal/messenger"
	"strconv"
	"strings"
)

// maxRequestBodySize bounds a chat request body.
const maxRequestBodySize = 64 << 10

// ChatBot handles chat input.
type ChatBot interface {
	HandleMessage(ctx context.Context, chatID int64, text string) error
	HandleCallback(ctx context.Context, chatID int64, data string) error
	Status() bot.Status
}

// MailboxReader hands out queued replies.
type MailboxReader interface {
	Drain(chatID int64) []messenger.Message
}

// OutboxStatter reports webhook delivery counters.
type OutboxStatter interface {
	Stats() messenger.OutboxStats
}

// MessageRequest is the body of POST /v1/chats/{chatId}/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// CallbackRequest is the body of POST /v1/chats/{chatId}/callbacks.
type CallbackRequest struct {
	Data string `json:"data"`
}

// AcceptedResponse acknowledges chat input.
type AcceptedResponse struct {
	ChatID int64  `json:"chat_id"`
	Status string `json:"status"`
}

// MessagesResponse carries drained replies.
type MessagesResponse struct {
	ChatID   int64               `json:"chat_id"`
	Messages []messenger.Message `json:"messages"`
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	bot.Status
	Outbox *messenger.OutboxStats `json:"outbox,omitempty"`
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler contains the gateway handlers.
type Handler struct {
	bot     ChatBot
	mailbox MailboxReader
	outbox  OutboxStatter
	health  *health.Checker
}

// NewHandler creates the gateway handlers. outbox may be nil.
func NewHandler(b ChatBot, mailbox MailboxReader, outbox OutboxStatter, checker *health.Checker) *Handler {
	return &Handler{bot: b, mailbox: mailbox, outbox: outbox, health: checker}
}

// PostMessage handles POST /v1/chats/{chatId}/messages.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var req MessageRequest
	if err := decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.handleError(w, r, apperrors.Validation("text", "text is required"))
		return
	}

	if err := h.bot.HandleMessage(r.Context(), chatID, req.Text); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{ChatID: chatID, Status: "accepted"})
}

// PostCallback handles POST /v1/chats/{chatId}/callbacks.
func (h *Handler) PostCallback(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	var req CallbackRequest
	if err := decode(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	if req.Data == "" {
		h.handleError(w, r, apperrors.Validation("data", "data is required"))
		return
	}

	if err := h.bot.HandleCallback(r.Context(), chatID, req.Data); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{ChatID: chatID, Status: "accepted"})
}

// DrainMessages handles GET /v1/chats/{chatId}/messages. Returned messages
// are removed from the mailbox.
func (h *Handler) DrainMessages(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatIDParam(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{ChatID: chatID, Messages: h.mailbox.Drain(chatID)})
}

// Status handles GET /v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: h.bot.Status()}
	if h.outbox != nil {
		stats := h.outbox.Stats()
		resp.Outbox = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// Livez handles GET /livez.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz. It answers 503 until bootstrap has finished
// and again once shutdown begins.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func chatIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("chatId"), 10, 64)
	if err != nil {
		return 0, apperrors.Validation("chatId", "chat ID must be an integer")
	}
	return id, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("body", "request body is required")
		}
		return apperrors.Validation("body", "invalid request body: "+err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleError maps err to a status and a chat-safe message.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 && status != http.StatusServiceUnavailable {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Request rejected", "error", err, "path", r.URL.Path, "status", status)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   errorCode(status),
		Message: apperrors.UserMessage(err),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "not_ready"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "internal"
	}
}
