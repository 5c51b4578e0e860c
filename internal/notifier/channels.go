package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/hiroki-koketsu/go-reminder/internal/model"
)

// LogChannel writes each notification as a structured log record.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(ctx context.Context, n model.Notification) error {
	c.logger.InfoContext(ctx, n.Title,
		slog.String("notification_id", n.ID),
		slog.String("channel", n.Channel),
		slog.String("label", n.Label),
	)
	return nil
}

// CommandChannel runs a host command with the notification title appended
// as its last argument, e.g. "notify-send -u critical".
type CommandChannel struct {
	name string
	args []string
}

// NewCommandChannel parses a command line into a CommandChannel.
func NewCommandChannel(command string) (*CommandChannel, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty notify command")
	}
	return &CommandChannel{name: fields[0], args: fields[1:]}, nil
}

func (c *CommandChannel) Name() string { return "command" }

func (c *CommandChannel) Deliver(ctx context.Context, n model.Notification) error {
	args := append(append([]string(nil), c.args...), n.Title)
	out, err := exec.CommandContext(ctx, c.name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.name, err, msg)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// History keeps the most recent notifications in memory, newest last.
type History struct {
	mu    sync.RWMutex
	size  int
	items []model.Notification
}

// NewHistory creates a History holding at most size notifications.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{size: size}
}

func (h *History) Name() string { return "history" }

func (h *History) Deliver(_ context.Context, n model.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append(h.items, n)
	if over := len(h.items) - h.size; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
	return nil
}

// List returns a copy of the retained notifications, oldest first.
func (h *History) List() []model.Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]model.Notification, len(h.items))
	copy(out, h.items)
	return out
}
