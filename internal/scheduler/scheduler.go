// Package scheduler runs one lightweight task per reminder. A one-shot task
// waits its delay and notifies once; a recurring task notifies on every
// tick of its interval until cancelled. Nothing is persisted: tasks still
// pending at Shutdown are abandoned.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-reminder/internal/scheduler")

// Notifier raises the alert for a fired reminder. It must not block for
// long and must not panic; failures are its own to report.
type Notifier interface {
	Notify(ctx context.Context, label string)
}

// Scheduler owns the running reminder tasks.
type Scheduler struct {
	notifier        Notifier
	unit            time.Duration
	deliveryTimeout time.Duration
	logger          *slog.Logger
	onFire          func(id string, at time.Time)
	onDone          func(id string, state State)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	handles map[string]*Handle
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithUnit sets the length of one delay "minute". Defaults to time.Minute.
func WithUnit(unit time.Duration) Option {
	return func(s *Scheduler) {
		if unit > 0 {
			s.unit = unit
		}
	}
}

// WithDeliveryTimeout bounds each call to the notifier.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// OnFire registers a hook called after every notification.
func OnFire(fn func(id string, at time.Time)) Option {
	return func(s *Scheduler) { s.onFire = fn }
}

// OnDone registers a hook called once when a task exits, with its final state.
func OnDone(fn func(id string, state State)) Option {
	return func(s *Scheduler) { s.onDone = fn }
}

// New creates a Scheduler delivering through notifier.
func New(notifier Notifier, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		notifier:        notifier,
		unit:            time.Minute,
		deliveryTimeout: 10 * time.Second,
		logger:          slog.Default(),
		onFire:          func(string, time.Time) {},
		onDone:          func(string, State) {},
		ctx:             ctx,
		cancel:          cancel,
		handles:         make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule starts a task for req and returns its handle. An empty id gets a
// generated one. If a task with id is still running, its handle is returned
// and req is ignored. After Shutdown the returned handle is already abandoned.
func (s *Scheduler) Schedule(id string, req model.ReminderRequest) *Handle {
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{
		id:     id,
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		cancel()
		h.state.Store(int32(StateAbandoned))
		close(h.done)
		s.onDone(id, StateAbandoned)
		return h
	}
	if running, ok := s.handles[id]; ok {
		s.mu.Unlock()
		cancel()
		return running
	}
	s.handles[id] = h
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("reminder scheduled",
		slog.String("reminder_id", id),
		slog.Int64("delay_minutes", req.DelayMinutes()),
		slog.Bool("recurring", req.Recurring()),
	)

	go s.run(ctx, h)
	return h
}

// Cancel cancels the task with the given id. It reports whether a pending
// task was stopped; unknown or finished tasks are a no-op.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	h, ok := s.handles[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return h.Cancel()
}

// Handle returns the handle of a running task.
func (s *Scheduler) Handle(id string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

// Active returns the number of tasks still waiting to fire.
func (s *Scheduler) Active() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.handles))
}

// Shutdown abandons every pending task and waits for them to exit or for
// ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, h *Handle) {
	defer s.wg.Done()
	defer func() {
		h.cancel()
		// The final state is recorded while the handle is still registered,
		// so a lookup that misses it always sees the recorded state.
		s.onDone(h.id, h.State())
		s.mu.Lock()
		delete(s.handles, h.id)
		s.mu.Unlock()
		close(h.done)
	}()

	interval := h.req.Interval(s.unit)
	if h.req.Recurring() {
		s.runRecurring(ctx, h, interval)
		return
	}
	s.runOnce(ctx, h, interval)
}

func (s *Scheduler) runOnce(ctx context.Context, h *Handle, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		h.abandon()
		return
	case <-timer.C:
	}

	// Past the wait point the reminder can no longer be retracted.
	if !h.state.CompareAndSwap(int32(StateScheduled), int32(StateCompleted)) {
		return
	}
	s.fire(ctx, h)
}

func (s *Scheduler) runRecurring(ctx context.Context, h *Handle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.abandon()
			return
		case <-ticker.C:
			if h.State() != StateScheduled {
				return
			}
			s.fire(ctx, h)
		}
	}
}

// fire notifies for h. Delivery is detached from the task context so a
// cancel racing an in-flight delivery does not cut it short.
func (s *Scheduler) fire(ctx context.Context, h *Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
	defer cancel()

	n := h.fired.Add(1)
	ctx, span := tracer.Start(ctx, "Scheduler.fire",
		trace.WithAttributes(
			attribute.String("reminder.id", h.id),
			attribute.Bool("reminder.recurring", h.req.Recurring()),
			attribute.Int64("reminder.fire", n),
		),
	)
	defer span.End()

	s.logger.InfoContext(ctx, "reminder fired",
		slog.String("reminder_id", h.id),
		slog.Int64("fire", n),
	)

	s.notifier.Notify(ctx, h.req.Label())
	s.onFire(h.id, time.Now())
}

// State is the lifecycle state of a scheduled task.
type State int32

const (
	StateScheduled State = iota
	StateCompleted
	StateCancelled
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Status maps the task state onto the reminder record status.
func (s State) Status() model.Status {
	switch s {
	case StateCompleted:
		return model.StatusCompleted
	case StateCancelled:
		return model.StatusCancelled
	case StateAbandoned:
		return model.StatusAbandoned
	default:
		return model.StatusScheduled
	}
}

// Handle controls one scheduled task.
type Handle struct {
	id     string
	req    model.ReminderRequest
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32
	fired  atomic.Int64
}

// ID returns the task id.
func (h *Handle) ID() string { return h.id }

// Request returns the request the task was scheduled for.
func (h *Handle) Request() model.ReminderRequest { return h.req }

// State returns the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Fired returns how many notifications the task has raised.
func (h *Handle) Fired() int64 { return h.fired.Load() }

// Done is closed once the task has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel prevents any further notification. It reports whether the call
// stopped a pending task; cancelling a finished task is a no-op.
func (h *Handle) Cancel() bool {
	if !h.state.CompareAndSwap(int32(StateScheduled), int32(StateCancelled)) {
		return false
	}
	h.cancel()
	return true
}

func (h *Handle) abandon() {
	h.state.CompareAndSwap(int32(StateScheduled), int32(StateAbandoned))
}
