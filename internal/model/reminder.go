package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// maxDelayMinutes is the largest delay whose duration still fits in a time.Duration.
const maxDelayMinutes = math.MaxInt64 / int64(time.Minute)

// ReminderRequest is a validated, immutable request to schedule a reminder.
// The zero value is not valid; use Validate to build one.
type ReminderRequest struct {
	label        string
	delayMinutes int64
	recurring    bool
}

// Validate trims and checks the raw form input and returns a ReminderRequest.
// recurring is decided by the caller from the action the user invoked.
func Validate(label, minutesText string, recurring bool) (ReminderRequest, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return ReminderRequest{}, ErrEmptyLabel
	}

	minutes, err := strconv.ParseInt(strings.TrimSpace(minutesText), 10, 64)
	if err != nil || minutes < 1 || minutes > maxDelayMinutes {
		return ReminderRequest{}, ErrInvalidMinutes
	}

	return ReminderRequest{
		label:        label,
		delayMinutes: minutes,
		recurring:    recurring,
	}, nil
}

// Label returns the trimmed reminder label.
func (r ReminderRequest) Label() string { return r.label }

// DelayMinutes returns the delay (one-shot) or period (recurring) in minutes.
func (r ReminderRequest) DelayMinutes() int64 { return r.delayMinutes }

// Recurring reports whether the reminder repeats.
func (r ReminderRequest) Recurring() bool { return r.recurring }

// Interval converts the delay to a duration, treating unit as one minute.
// Callers pass time.Minute in production. Products that do not fit in a
// time.Duration saturate at the largest one.
func (r ReminderRequest) Interval(unit time.Duration) time.Duration {
	if unit <= 0 {
		unit = time.Minute
	}
	if r.delayMinutes > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(r.delayMinutes) * unit
}

// Status is the lifecycle state of a reminder record.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further notification can fire in this status.
func (s Status) Terminal() bool {
	return s != StatusScheduled
}

// Reminder represents a scheduled reminder as tracked by the service.
type Reminder struct {
	ID           string     `json:"id"`
	Label        string     `json:"label"`
	DelayMinutes int64      `json:"delay_minutes"`
	Recurring    bool       `json:"recurring"`
	Status       Status     `json:"status"`
	FireCount    int64      `json:"fire_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastFiredAt  *time.Time `json:"last_fired_at,omitempty"`
}

// Request rebuilds the immutable request the reminder was scheduled from.
func (r *Reminder) Request() ReminderRequest {
	return ReminderRequest{
		label:        r.Label,
		delayMinutes: r.DelayMinutes,
		recurring:    r.Recurring,
	}
}

// MinutesText is the minutes field as typed by the user. It accepts either a
// JSON string or a JSON number so API clients need not quote it.
type MinutesText string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MinutesText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MinutesText(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = MinutesText(n.String())
	return nil
}

// CreateReminderRequest represents the request body for creating a reminder.
type CreateReminderRequest struct {
	Label     string      `json:"label"`
	Minutes   MinutesText `json:"minutes"`
	Recurring bool        `json:"recurring"`
}

// Validate checks the body and returns the request to schedule.
func (r *CreateReminderRequest) Validate() (ReminderRequest, error) {
	return Validate(r.Label, string(r.Minutes), r.Recurring)
}

// CreateReminderResponse is returned after a reminder has been scheduled.
type CreateReminderResponse struct {
	Reminder *Reminder `json:"reminder"`
	Message  string    `json:"message"`
}

// ConfirmationMessage is the transient message shown after a successful add.
func ConfirmationMessage(label string) string {
	return label + ", Successfully added your reminder!"
}

// ReminderError represents a domain error for reminders.
type ReminderError struct {
	Message string
}

func (e ReminderError) Error() string {
	return e.Message
}

var (
	ErrEmptyLabel       = ReminderError{Message: "reminder name cannot be empty"}
	ErrInvalidMinutes   = ReminderError{Message: "minimum 1 minute"}
	ErrReminderNotFound = ReminderError{Message: "reminder not found"}
)
