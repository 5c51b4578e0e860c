package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"github.com/hiroki-koketsu/go-reminder/internal/repository"
	"github.com/hiroki-koketsu/go-reminder/internal/scheduler"
)

// ReminderService validates input, records reminders and schedules them.
type ReminderService struct {
	repo      *repository.ReminderRepository
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewReminderService wires a scheduler to repo. The scheduler options are
// extended with hooks that keep the stored reminders current.
func NewReminderService(repo *repository.ReminderRepository, notifier scheduler.Notifier, logger *slog.Logger, opts ...scheduler.Option) *ReminderService {
	s := &ReminderService{repo: repo, logger: logger}

	opts = append(opts,
		scheduler.WithLogger(logger),
		scheduler.OnFire(s.recordFire),
		scheduler.OnDone(s.recordDone),
	)
	s.scheduler = scheduler.New(notifier, opts...)
	return s
}

// Add validates the raw input and schedules the reminder. Nothing is
// recorded or scheduled when validation fails.
func (s *ReminderService) Add(ctx context.Context, in model.CreateReminderRequest) (*model.Reminder, error) {
	req, err := in.Validate()
	if err != nil {
		return nil, err
	}

	reminder, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.scheduler.Schedule(reminder.ID, req)
	return reminder, nil
}

// Get returns a reminder by ID.
func (s *ReminderService) Get(ctx context.Context, id string) (*model.Reminder, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every reminder known to the service.
func (s *ReminderService) List(ctx context.Context) ([]*model.Reminder, error) {
	return s.repo.List(ctx)
}

// Cancel stops a reminder. Cancelling a reminder that already completed
// or was cancelled returns it unchanged.
func (s *ReminderService) Cancel(ctx context.Context, id string) (*model.Reminder, error) {
	// The handle is looked up first: once it is gone the task's final
	// status is already stored.
	h, ok := s.scheduler.Handle(id)
	if !ok {
		return s.repo.GetByID(ctx, id)
	}
	// A failed cancel means the task finished first; record its state now
	// rather than wait for the done hook.
	h.Cancel()
	return s.repo.SetStatus(ctx, id, h.State().Status())
}

// Active returns the number of reminders waiting to fire.
func (s *ReminderService) Active() int64 {
	return s.scheduler.Active()
}

// Shutdown abandons pending reminders.
func (s *ReminderService) Shutdown(ctx context.Context) error {
	return s.scheduler.Shutdown(ctx)
}

func (s *ReminderService) recordFire(id string, at time.Time) {
	if err := s.repo.RecordFire(context.Background(), id, at); err != nil {
		s.logger.Warn("failed to record reminder fire", slog.String("reminder_id", id), slog.Any("error", err))
	}
}

func (s *ReminderService) recordDone(id string, state scheduler.State) {
	_, err := s.repo.SetStatus(context.Background(), id, state.Status())
	if err != nil && !errors.Is(err, model.ErrReminderNotFound) {
		s.logger.Warn("failed to record reminder status", slog.String("reminder_id", id), slog.Any("error", err))
	}
	s.logger.Info("reminder finished", slog.String("reminder_id", id), slog.String("state", state.String()))
}
