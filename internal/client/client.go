// Package client talks to the reminder HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Client is a reminder API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}
}

// AddOneTime schedules a reminder that fires once after minutes.
func (c *Client) AddOneTime(ctx context.Context, label, minutes string) (*model.CreateReminderResponse, error) {
	return c.add(ctx, "/api/v1/reminders/one-time", label, minutes)
}

// AddRecurring schedules a reminder that fires every minutes.
func (c *Client) AddRecurring(ctx context.Context, label, minutes string) (*model.CreateReminderResponse, error) {
	return c.add(ctx, "/api/v1/reminders/recurring", label, minutes)
}

func (c *Client) add(ctx context.Context, path, label, minutes string) (*model.CreateReminderResponse, error) {
	body := model.CreateReminderRequest{Label: label, Minutes: model.MinutesText(minutes)}
	var out model.CreateReminderResponse
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every reminder.
func (c *Client) List(ctx context.Context) ([]model.Reminder, error) {
	var out []model.Reminder
	if err := c.do(ctx, http.MethodGet, "/api/v1/reminders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel cancels the reminder with id and returns its final record.
func (c *Client) Cancel(ctx context.Context, id string) (*model.Reminder, error) {
	var out model.Reminder
	if err := c.do(ctx, http.MethodDelete, "/api/v1/reminders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications returns the most recent notifications.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch streams notifications to fn until ctx is done or the server
// closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(model.Notification)) error {
	u, err := url.Parse(c.baseURL + "/api/v1/notifications/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial notifications: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev model.NotificationEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read notification: %w", err)
		}
		if ev.Type == model.EventReminder && ev.Notification != nil {
			fn(*ev.Notification)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
