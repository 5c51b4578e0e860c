package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-reminder/internal/notifier"
	"github.com/hiroki-koketsu/go-reminder/internal/telemetry"
)

// NotificationHandler exposes raised notifications.
type NotificationHandler struct {
	history *notifier.History
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(history *notifier.History, logger *slog.Logger, metrics *telemetry.Metrics) *NotificationHandler {
	return &NotificationHandler{
		history: history,
		logger:  logger,
		metrics: metrics,
	}
}

// Routes returns the chi router with notification routes.
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)

	return r
}

// List returns the most recent notifications, oldest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "NotificationHandler.List")
	defer span.End()

	notifications := h.history.List()
	h.logger.DebugContext(ctx, "notifications listed", slog.Int("count", len(notifications)))

	respondJSON(w, http.StatusOK, notifications)
	h.metrics.RecordRequest(ctx, "GET", "/api/v1/notifications", http.StatusOK, start)
}

// Health returns a health check response.
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
