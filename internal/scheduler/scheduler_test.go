package scheduler

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-reminder/internal/model"
)

const unit = 20 * time.Millisecond

type fakeNotifier struct {
	mu     sync.Mutex
	labels []string
	fired  chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{fired: make(chan string, 64)}
}

func (f *fakeNotifier) Notify(_ context.Context, label string) {
	f.mu.Lock()
	f.labels = append(f.labels, label)
	f.mu.Unlock()
	f.fired <- label
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.labels)
}

func request(t *testing.T, label, minutes string, recurring bool) model.ReminderRequest {
	t.Helper()
	req, err := model.Validate(label, minutes, recurring)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return req
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s did not exit", h.ID())
	}
}

func waitFired(t *testing.T, f *fakeNotifier) string {
	t.Helper()
	select {
	case label := <-f.fired:
		return label
	case <-time.After(2 * time.Second):
		t.Fatal("no notification fired")
		return ""
	}
}

func TestOneShotFiresExactlyOnce(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	start := time.Now()
	h := s.Schedule("r-1", request(t, "Call mom", "2", false))

	if label := waitFired(t, notifier); label != "Call mom" {
		t.Fatalf("want Call mom, got %q", label)
	}
	if elapsed := time.Since(start); elapsed < 2*unit {
		t.Fatalf("fired too early: %s", elapsed)
	}
	waitDone(t, h)

	time.Sleep(4 * unit)
	if notifier.count() != 1 {
		t.Fatalf("want exactly 1 notification, got %d", notifier.count())
	}
	if h.State() != StateCompleted || h.Fired() != 1 {
		t.Fatalf("want completed with 1 fire, got %s/%d", h.State(), h.Fired())
	}
	if s.Active() != 0 {
		t.Fatalf("want no active tasks, got %d", s.Active())
	}
}

func TestRecurringFiresUntilCancelled(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	h := s.Schedule("r-1", request(t, "Drink water", "1", true))

	for i := 0; i < 3; i++ {
		waitFired(t, notifier)
	}
	if !h.Cancel() {
		t.Fatal("cancel should stop a pending recurring task")
	}
	waitDone(t, h)

	after := notifier.count()
	time.Sleep(5 * unit)
	if notifier.count() != after {
		t.Fatalf("notifications fired after cancel: %d -> %d", after, notifier.count())
	}
	if h.State() != StateCancelled {
		t.Fatalf("want cancelled, got %s", h.State())
	}
}

func TestCancelBeforeFire(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	h := s.Schedule("r-1", request(t, "Call mom", "3", false))
	if !s.Cancel("r-1") {
		t.Fatal("cancel should stop a pending task")
	}
	waitDone(t, h)

	time.Sleep(5 * unit)
	if notifier.count() != 0 {
		t.Fatalf("cancelled reminder fired %d times", notifier.count())
	}
}

func TestCancelCompletedIsNoop(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	h := s.Schedule("r-1", request(t, "Call mom", "1", false))
	waitFired(t, notifier)
	waitDone(t, h)

	if h.Cancel() {
		t.Fatal("cancelling a completed task must be a no-op")
	}
	if h.Cancel() {
		t.Fatal("second cancel must also be a no-op")
	}
	if s.Cancel("r-1") {
		t.Fatal("scheduler should no longer know the task")
	}
	if h.State() != StateCompleted || notifier.count() != 1 {
		t.Fatalf("state %s, notifications %d", h.State(), notifier.count())
	}
}

func TestIndependentReminders(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	a := s.Schedule("a", request(t, "first", "1", false))
	b := s.Schedule("b", request(t, "second", "2", false))
	s.Cancel("a")

	waitDone(t, a)
	waitDone(t, b)
	if a.State() != StateCancelled || b.State() != StateCompleted {
		t.Fatalf("unexpected states a=%s b=%s", a.State(), b.State())
	}
	if notifier.count() != 1 {
		t.Fatalf("want 1 notification, got %d", notifier.count())
	}
}

func TestShutdownAbandonsPending(t *testing.T) {
	notifier := newFakeNotifier()
	var mu sync.Mutex
	done := map[string]State{}
	s := New(notifier, WithUnit(time.Hour), OnDone(func(id string, st State) {
		mu.Lock()
		done[id] = st
		mu.Unlock()
	}))

	one := s.Schedule("one", request(t, "later", "1", false))
	rec := s.Schedule("rec", request(t, "every", "1", true))
	if s.Active() != 2 {
		t.Fatalf("want 2 active, got %d", s.Active())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	for _, h := range []*Handle{one, rec} {
		if h.State() != StateAbandoned {
			t.Errorf("%s: want abandoned, got %s", h.ID(), h.State())
		}
	}
	mu.Lock()
	if done["one"] != StateAbandoned || done["rec"] != StateAbandoned {
		t.Errorf("unexpected done hooks %v", done)
	}
	mu.Unlock()

	late := s.Schedule("late", request(t, "too late", "1", false))
	waitDone(t, late)
	if late.State() != StateAbandoned {
		t.Fatalf("scheduling after shutdown should abandon, got %s", late.State())
	}
	if notifier.count() != 0 {
		t.Fatalf("abandoned reminders fired %d times", notifier.count())
	}
}

func TestHooksAndGeneratedID(t *testing.T) {
	notifier := newFakeNotifier()
	fires := make(chan string, 4)
	finals := make(chan State, 1)
	s := New(notifier,
		WithUnit(unit),
		OnFire(func(id string, _ time.Time) { fires <- id }),
		OnDone(func(_ string, st State) { finals <- st }),
	)
	defer s.Shutdown(context.Background())

	h := s.Schedule("", request(t, "Stretch", "1", false))
	if h.ID() == "" {
		t.Fatal("expected generated id")
	}
	if got, ok := s.Handle(h.ID()); !ok || got != h {
		t.Fatal("handle lookup failed")
	}

	select {
	case id := <-fires:
		if id != h.ID() {
			t.Fatalf("fire hook got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fire hook not called")
	}
	select {
	case st := <-finals:
		if st != StateCompleted {
			t.Fatalf("done hook got %s", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("done hook not called")
	}
}

func TestStateStatus(t *testing.T) {
	cases := map[State]model.Status{
		StateScheduled: model.StatusScheduled,
		StateCompleted: model.StatusCompleted,
		StateCancelled: model.StatusCancelled,
		StateAbandoned: model.StatusAbandoned,
	}
	for st, want := range cases {
		if st.Status() != want {
			t.Errorf("%s: want %s, got %s", st, want, st.Status())
		}
	}
}

func TestLargeUnitDoesNotOverflow(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(2*time.Minute))
	defer s.Shutdown(context.Background())

	minutes := strconv.FormatInt(math.MaxInt64/int64(time.Minute), 10)
	once := s.Schedule("once", request(t, "far away", minutes, false))
	rec := s.Schedule("rec", request(t, "far apart", minutes, true))

	time.Sleep(5 * unit)
	if notifier.count() != 0 {
		t.Fatalf("overflowing delay fired %d times", notifier.count())
	}
	for _, h := range []*Handle{once, rec} {
		if h.State() != StateScheduled {
			t.Fatalf("%s: want scheduled, got %s", h.ID(), h.State())
		}
		if !h.Cancel() {
			t.Fatalf("%s: cancel should stop the task", h.ID())
		}
		waitDone(t, h)
	}
}

func TestScheduleDuplicateIDKeepsRunningTask(t *testing.T) {
	notifier := newFakeNotifier()
	s := New(notifier, WithUnit(unit))
	defer s.Shutdown(context.Background())

	first := s.Schedule("dup", request(t, "first", "50", false))
	second := s.Schedule("dup", request(t, "second", "1", false))
	if second != first {
		t.Fatal("duplicate id should return the running handle")
	}
	if s.Active() != 1 {
		t.Fatalf("want 1 active task, got %d", s.Active())
	}
	if !s.Cancel("dup") {
		t.Fatal("running task should stay cancellable by id")
	}
	waitDone(t, first)
	if notifier.count() != 0 {
		t.Fatalf("ignored request fired %d times", notifier.count())
	}
}

func TestDoneHookRunsWhileHandleRegistered(t *testing.T) {
	notifier := newFakeNotifier()
	registered := make(chan bool, 1)
	var s *Scheduler
	s = New(notifier,
		WithUnit(unit),
		OnDone(func(id string, _ State) {
			_, ok := s.Handle(id)
			registered <- ok
		}),
	)
	defer s.Shutdown(context.Background())

	h := s.Schedule("r-1", request(t, "Call mom", "1", false))
	waitDone(t, h)
	if !<-registered {
		t.Fatal("done hook ran after the handle was dropped")
	}
	if _, ok := s.Handle("r-1"); ok {
		t.Fatal("finished task should be unregistered")
	}
}
