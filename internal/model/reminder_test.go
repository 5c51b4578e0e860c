package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"
)

func TestValidateBlankLabel(t *testing.T) {
	for _, label := range []string{"", " ", "\t", "\n  \t"} {
		_, err := Validate(label, "5", false)
		if !errors.Is(err, ErrEmptyLabel) {
			t.Errorf("label %q: want ErrEmptyLabel, got %v", label, err)
		}
	}
}

func TestValidateInvalidMinutes(t *testing.T) {
	tooLarge := strconv.FormatInt(maxDelayMinutes+1, 10)
	for _, minutes := range []string{"", "abc", "0", "-1", "-30", "1.5", "5m", tooLarge, "99999999999999999999"} {
		_, err := Validate("Call mom", minutes, false)
		if !errors.Is(err, ErrInvalidMinutes) {
			t.Errorf("minutes %q: want ErrInvalidMinutes, got %v", minutes, err)
		}
	}
}

func TestValidateLabelCheckedFirst(t *testing.T) {
	_, err := Validate("", "0", false)
	if !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("want ErrEmptyLabel, got %v", err)
	}
}

func TestValidateSuccess(t *testing.T) {
	req, err := Validate("  Call mom ", " 2 ", true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Label() != "Call mom" {
		t.Errorf("want trimmed label, got %q", req.Label())
	}
	if req.DelayMinutes() != 2 {
		t.Errorf("want 2 minutes, got %d", req.DelayMinutes())
	}
	if !req.Recurring() {
		t.Error("want recurring request")
	}
	if got := req.Interval(time.Minute); got != 2*time.Minute {
		t.Errorf("want 2m interval, got %s", got)
	}
}

func TestValidateLargestDelay(t *testing.T) {
	req, err := Validate("x", strconv.FormatInt(maxDelayMinutes, 10), false)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Interval(time.Minute) <= 0 {
		t.Fatal("interval overflowed")
	}
}

func TestIntervalSaturates(t *testing.T) {
	req, err := Validate("x", strconv.FormatInt(maxDelayMinutes, 10), true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, u := range []time.Duration{2 * time.Minute, time.Hour, 24 * time.Hour} {
		if got := req.Interval(u); got != time.Duration(math.MaxInt64) {
			t.Errorf("unit %s: want saturated interval, got %s", u, got)
		}
	}

	small, _ := Validate("x", "3", false)
	if got := small.Interval(time.Hour); got != 3*time.Hour {
		t.Errorf("want 3h, got %s", got)
	}
}

func TestCreateReminderRequestMinutesForms(t *testing.T) {
	cases := map[string]string{
		`{"label":"a","minutes":"5"}`:  "5",
		`{"label":"a","minutes":5}`:    "5",
		`{"label":"a","minutes":-2}`:   "-2",
		`{"label":"a","minutes":null}`: "",
		`{"label":"a"}`:                "",
	}
	for body, want := range cases {
		var req CreateReminderRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		if string(req.Minutes) != want {
			t.Errorf("%s: want %q, got %q", body, want, req.Minutes)
		}
	}

	var req CreateReminderRequest
	if err := json.Unmarshal([]byte(`{"minutes":true}`), &req); err == nil {
		t.Error("expected error for boolean minutes")
	}
}

func TestReminderRequestRoundTrip(t *testing.T) {
	req, _ := Validate("Stretch", "15", true)
	r := &Reminder{Label: req.Label(), DelayMinutes: req.DelayMinutes(), Recurring: req.Recurring()}
	if r.Request() != req {
		t.Fatalf("want %+v, got %+v", req, r.Request())
	}
}

func TestMessages(t *testing.T) {
	if got := ConfirmationMessage("Call mom"); got != "Call mom, Successfully added your reminder!" {
		t.Errorf("unexpected confirmation %q", got)
	}
	if got := NotificationTitle("Call mom"); got != "Reminder, your Call mom. Don't forget, hurry up!" {
		t.Errorf("unexpected title %q", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusScheduled.Terminal() {
		t.Error("scheduled must not be terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusAbandoned} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestDeliveryErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&DeliveryError{Channel: "log", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("DeliveryError should unwrap to its cause")
	}
	var de *DeliveryError
	if !errors.As(err, &de) || de.Channel != "log" {
		t.Fatal("errors.As should find the channel")
	}
}
