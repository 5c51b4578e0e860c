package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-reminder/internal/repository")

// ReminderRepository provides an in-memory storage for reminders.
// Returned reminders are copies; callers may not mutate stored state.
type ReminderRepository struct {
	mu        sync.RWMutex
	reminders map[string]*model.Reminder
}

// NewReminderRepository creates a new ReminderRepository.
func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{
		reminders: make(map[string]*model.Reminder),
	}
}

// Create stores a new scheduled reminder for req.
func (r *ReminderRepository) Create(ctx context.Context, req model.ReminderRequest) (*model.Reminder, error) {
	_, span := tracer.Start(ctx, "ReminderRepository.Create",
		trace.WithAttributes(
			attribute.String("reminder.label", req.Label()),
			attribute.Int64("reminder.delay_minutes", req.DelayMinutes()),
			attribute.Bool("reminder.recurring", req.Recurring()),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	reminder := &model.Reminder{
		ID:           uuid.New().String(),
		Label:        req.Label(),
		DelayMinutes: req.DelayMinutes(),
		Recurring:    req.Recurring(),
		Status:       model.StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.reminders[reminder.ID] = reminder

	span.SetAttributes(attribute.String("reminder.id", reminder.ID))
	return clone(reminder), nil
}

// GetByID retrieves a reminder by its ID.
func (r *ReminderRepository) GetByID(ctx context.Context, id string) (*model.Reminder, error) {
	_, span := tracer.Start(ctx, "ReminderRepository.GetByID",
		trace.WithAttributes(attribute.String("reminder.id", id)),
	)
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	reminder, ok := r.reminders[id]
	if !ok {
		span.SetAttributes(attribute.Bool("reminder.found", false))
		return nil, model.ErrReminderNotFound
	}

	span.SetAttributes(attribute.Bool("reminder.found", true))
	return clone(reminder), nil
}

// List returns all reminders, oldest first.
func (r *ReminderRepository) List(ctx context.Context) ([]*model.Reminder, error) {
	_, span := tracer.Start(ctx, "ReminderRepository.List")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	reminders := make([]*model.Reminder, 0, len(r.reminders))
	for _, reminder := range r.reminders {
		reminders = append(reminders, clone(reminder))
	}
	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].CreatedAt.Equal(reminders[j].CreatedAt) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].CreatedAt.Before(reminders[j].CreatedAt)
	})

	span.SetAttributes(attribute.Int("reminder.count", len(reminders)))
	return reminders, nil
}

// RecordFire notes that the reminder raised a notification at the given time.
func (r *ReminderRepository) RecordFire(ctx context.Context, id string, at time.Time) error {
	_, span := tracer.Start(ctx, "ReminderRepository.RecordFire",
		trace.WithAttributes(attribute.String("reminder.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		span.SetAttributes(attribute.Bool("reminder.found", false))
		return model.ErrReminderNotFound
	}

	reminder.FireCount++
	reminder.LastFiredAt = &at
	reminder.UpdatedAt = time.Now()

	span.SetAttributes(attribute.Int64("reminder.fire_count", reminder.FireCount))
	return nil
}

// SetStatus moves a scheduled reminder to status. A reminder already in a
// terminal status keeps it; the stored reminder is returned either way.
func (r *ReminderRepository) SetStatus(ctx context.Context, id string, status model.Status) (*model.Reminder, error) {
	_, span := tracer.Start(ctx, "ReminderRepository.SetStatus",
		trace.WithAttributes(
			attribute.String("reminder.id", id),
			attribute.String("reminder.status", string(status)),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		span.SetAttributes(attribute.Bool("reminder.found", false))
		return nil, model.ErrReminderNotFound
	}

	changed := !reminder.Status.Terminal() && reminder.Status != status
	if changed {
		reminder.Status = status
		reminder.UpdatedAt = time.Now()
	}

	span.SetAttributes(attribute.Bool("reminder.status_changed", changed))
	return clone(reminder), nil
}

// Count returns the current number of reminders.
func (r *ReminderRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.reminders))
}

// CountByStatus returns how many reminders are in status.
func (r *ReminderRepository) CountByStatus(status model.Status) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, reminder := range r.reminders {
		if reminder.Status == status {
			n++
		}
	}
	return n
}

func clone(r *model.Reminder) *model.Reminder {
	c := *r
	if r.LastFiredAt != nil {
		t := *r.LastFiredAt
		c.LastFiredAt = &t
	}
	return &c
}
