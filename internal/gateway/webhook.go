// Package gateway receives Telegram webhook updates, acknowledges the sender,
// and turns photo messages into queued work items.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nutrilog/nutrilog/internal/async"
)

const (
	msgProcessing   = "Processing your meal..."
	msgIntakeError  = "Sorry, there was an error processing your request."
	maxWebhookBytes = 1 << 20
)

// Notifier sends the immediate acknowledgment reply.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Webhook struct {
	queue    async.Queue
	notifier Notifier
	logger   *slog.Logger
}

func NewWebhook(queue async.Queue, notifier Notifier, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webhook{queue: queue, notifier: notifier, logger: logger}
}

// Routes builds the HTTP surface: the webhook endpoint plus a liveness probe.
func (h *Webhook) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Post("/telegram/webhook", h.handleUpdate)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// update mirrors the subset of the Telegram webhook payload the gateway reads.
type update struct {
	Message *struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Photo []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
	} `json:"message"`
}

func (h *Webhook) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("gateway.read_body_failed", "error", err)
		writeJSON(w, http.StatusOK, "could not read update")
		return
	}

	var upd update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.logger.Error("gateway.decode_failed", "error", err)
		writeJSON(w, http.StatusOK, "could not decode update")
		return
	}

	// Text messages, stickers, edits: acknowledged and dropped. Telegram
	// retries non-200 responses, so unusable updates still get a 200.
	if upd.Message == nil || len(upd.Message.Photo) == 0 {
		writeJSON(w, http.StatusOK, "no photo found")
		return
	}

	chatID := upd.Message.Chat.ID
	// Photo sizes arrive smallest first; take the largest rendition.
	fileID := upd.Message.Photo[len(upd.Message.Photo)-1].FileID
	item := async.WorkItem{
		ChatID:         chatID,
		FileID:         fileID,
		IdempotencyKey: fmt.Sprintf("%d-%d", chatID, upd.Message.MessageID),
	}

	if err := h.notifier.SendMessage(r.Context(), chatID, msgProcessing); err != nil {
		h.logger.Warn("gateway.ack_failed", "chat_id", chatID, "error", err)
	}

	if err := h.queue.Enqueue(r.Context(), item); err != nil {
		h.logger.Error("gateway.enqueue_failed", "key", item.IdempotencyKey, "error", err)
		if err := h.notifier.SendMessage(r.Context(), chatID, msgIntakeError); err != nil {
			h.logger.Warn("gateway.error_notify_failed", "chat_id", chatID, "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, "failed to queue request")
		return
	}

	h.logger.Info("gateway.enqueued", "key", item.IdempotencyKey, "chat_id", chatID)
	writeJSON(w, http.StatusOK, "request is being processed")
}

func writeJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
