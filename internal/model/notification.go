package model

import (
	"fmt"
	"time"
)

// Notification is a user-visible alert raised when a reminder fires.
type Notification struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Title     string    `json:"title"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationTitle formats the fixed alert text for a reminder label.
func NotificationTitle(label string) string {
	return fmt.Sprintf("Reminder, your %s. Don't forget, hurry up!", label)
}

// DeliveryError reports that a notification could not be delivered
// through one channel.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Event types pushed to WebSocket subscribers.
const (
	EventWelcome  = "welcome"
	EventReminder = "reminder"
)

// NotificationEvent is the envelope streamed to WebSocket subscribers.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
}
