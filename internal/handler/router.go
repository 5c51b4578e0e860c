package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP API. stream serves the notification
// WebSocket and is kept outside the request timeout.
func NewRouter(reminders *ReminderHandler, notifications *NotificationHandler, stream http.Handler) chi.Router {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	// Health check endpoint (excluded from tracing)
	r.Get("/health", Health)

	r.Handle("/api/v1/notifications/ws", stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/reminders", reminders.Routes())
			r.Mount("/notifications", notifications.Routes())
		})
	})

	return r
}
