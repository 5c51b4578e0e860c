package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	// Server settings
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	// OpenTelemetry settings
	TelemetryEnabled bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTLPEndpoint     string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName      string `envconfig:"OTEL_SERVICE_NAME" default:"go-reminder"`
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`

	// Reminder settings
	DelayUnit time.Duration `envconfig:"REMINDER_DELAY_UNIT" default:"1m"` // length of one "minute"

	// Notification settings
	NotificationChannel string        `envconfig:"NOTIFICATION_CHANNEL" default:"reminders"`
	NotifyCommand       string        `envconfig:"NOTIFY_COMMAND"` // e.g. "notify-send -u critical"
	HistorySize         int           `envconfig:"NOTIFICATION_HISTORY_SIZE" default:"100"`
	DeliveryTimeout     time.Duration `envconfig:"NOTIFICATION_DELIVERY_TIMEOUT" default:"10s"`
}

// Load reads environment variables into Config, applying defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
