package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"github.com/hiroki-koketsu/go-reminder/internal/service"
	"github.com/hiroki-koketsu/go-reminder/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-reminder/internal/handler")

// ReminderHandler handles HTTP requests for reminders.
type ReminderHandler struct {
	svc     *service.ReminderService
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(svc *service.ReminderService, logger *slog.Logger, metrics *telemetry.Metrics) *ReminderHandler {
	return &ReminderHandler{
		svc:     svc,
		logger:  logger,
		metrics: metrics,
	}
}

// Routes returns the chi router with reminder routes.
func (h *ReminderHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/one-time", h.CreateOneTime)
	r.Post("/recurring", h.CreateRecurring)
	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Cancel)

	return r
}

// List returns all reminders.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "ReminderHandler.List")
	defer span.End()

	reminders, err := h.svc.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list reminders", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "failed to list reminders")
		h.metrics.RecordRequest(ctx, "GET", "/api/v1/reminders", http.StatusInternalServerError, start)
		return
	}

	span.SetAttributes(attribute.Int("reminder.count", len(reminders)))
	h.logger.InfoContext(ctx, "reminders listed", slog.Int("count", len(reminders)))

	respondJSON(w, http.StatusOK, reminders)
	h.metrics.RecordRequest(ctx, "GET", "/api/v1/reminders", http.StatusOK, start)
}

// Create schedules a reminder; the body decides whether it recurs.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, "/api/v1/reminders", nil)
}

// CreateOneTime schedules a reminder that fires once.
func (h *ReminderHandler) CreateOneTime(w http.ResponseWriter, r *http.Request) {
	recurring := false
	h.create(w, r, "/api/v1/reminders/one-time", &recurring)
}

// CreateRecurring schedules a reminder that fires on every interval.
func (h *ReminderHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	recurring := true
	h.create(w, r, "/api/v1/reminders/recurring", &recurring)
}

// create decodes the body and schedules it. A non-nil recurring overrides
// the body's flag.
func (h *ReminderHandler) create(w http.ResponseWriter, r *http.Request, route string, recurring *bool) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "ReminderHandler.Create")
	defer span.End()

	var req model.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		respondError(w, http.StatusBadRequest, "invalid request body")
		h.metrics.RecordRequest(ctx, "POST", route, http.StatusBadRequest, start)
		return
	}
	if recurring != nil {
		req.Recurring = *recurring
	}

	reminder, err := h.svc.Add(ctx, req)
	if err != nil {
		var verr model.ReminderError
		if errors.As(err, &verr) {
			h.logger.WarnContext(ctx, "validation failed", slog.Any("error", err))
			respondError(w, http.StatusBadRequest, verr.Message)
			h.metrics.RecordRequest(ctx, "POST", route, http.StatusBadRequest, start)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create reminder", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "failed to create reminder")
		h.metrics.RecordRequest(ctx, "POST", route, http.StatusInternalServerError, start)
		return
	}

	span.SetAttributes(
		attribute.String("reminder.id", reminder.ID),
		attribute.Bool("reminder.recurring", reminder.Recurring),
	)
	h.logger.InfoContext(ctx, "reminder created",
		slog.String("id", reminder.ID),
		slog.String("label", reminder.Label),
		slog.Int64("delay_minutes", reminder.DelayMinutes),
		slog.Bool("recurring", reminder.Recurring),
	)

	respondJSON(w, http.StatusCreated, model.CreateReminderResponse{
		Reminder: reminder,
		Message:  model.ConfirmationMessage(reminder.Label),
	})
	h.metrics.RecordRequest(ctx, "POST", route, http.StatusCreated, start)
}

// GetByID returns a reminder by ID.
func (h *ReminderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "ReminderHandler.GetByID",
		trace.WithAttributes(attribute.String("reminder.id", id)),
	)
	defer span.End()

	reminder, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrReminderNotFound) {
			h.logger.WarnContext(ctx, "reminder not found", slog.String("id", id))
			respondError(w, http.StatusNotFound, "reminder not found")
			h.metrics.RecordRequest(ctx, "GET", "/api/v1/reminders/{id}", http.StatusNotFound, start)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get reminder", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "failed to get reminder")
		h.metrics.RecordRequest(ctx, "GET", "/api/v1/reminders/{id}", http.StatusInternalServerError, start)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
	h.metrics.RecordRequest(ctx, "GET", "/api/v1/reminders/{id}", http.StatusOK, start)
}

// Cancel stops a reminder. Cancelling a finished reminder returns it as is.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "ReminderHandler.Cancel",
		trace.WithAttributes(attribute.String("reminder.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "cancelling reminder", slog.String("id", id))

	reminder, err := h.svc.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrReminderNotFound) {
			h.logger.WarnContext(ctx, "reminder not found", slog.String("id", id))
			respondError(w, http.StatusNotFound, "reminder not found")
			h.metrics.RecordRequest(ctx, "DELETE", "/api/v1/reminders/{id}", http.StatusNotFound, start)
			return
		}
		h.logger.ErrorContext(ctx, "failed to cancel reminder", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "failed to cancel reminder")
		h.metrics.RecordRequest(ctx, "DELETE", "/api/v1/reminders/{id}", http.StatusInternalServerError, start)
		return
	}

	span.SetAttributes(attribute.String("reminder.status", string(reminder.Status)))
	h.logger.InfoContext(ctx, "reminder cancel handled",
		slog.String("id", id),
		slog.String("status", string(reminder.Status)),
	)

	respondJSON(w, http.StatusOK, reminder)
	h.metrics.RecordRequest(ctx, "DELETE", "/api/v1/reminders/{id}", http.StatusOK, start)
}
