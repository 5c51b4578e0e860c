package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiroki-koketsu/go-reminder/internal/config"
	"github.com/hiroki-koketsu/go-reminder/internal/handler"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"github.com/hiroki-koketsu/go-reminder/internal/notifier"
	"github.com/hiroki-koketsu/go-reminder/internal/repository"
	"github.com/hiroki-koketsu/go-reminder/internal/scheduler"
	"github.com/hiroki-koketsu/go-reminder/internal/service"
	"github.com/hiroki-koketsu/go-reminder/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := telemetry.NewJSONLogger(os.Stdout, cfg.LogLevel)
	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("telemetry", cfg.TelemetryEnabled),
		slog.Duration("delay_unit", cfg.DelayUnit),
	)

	ctx := context.Background()
	logger := startupLogger

	if cfg.TelemetryEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize tracer provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown tracer provider", slog.Any("error", err))
			}
		}()

		mp, err := telemetry.InitMeterProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize meter provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := mp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown meter provider", slog.Any("error", err))
			}
		}()

		// Initialized after the other providers for log-trace correlation
		lp, otelLogger, err := telemetry.InitLoggerProvider(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			startupLogger.Error("failed to initialize logger provider", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := lp.Shutdown(ctx); err != nil {
				startupLogger.Error("failed to shutdown logger provider", slog.Any("error", err))
			}
		}()
		logger = otelLogger
	}

	// Notification channels
	history := notifier.NewHistory(cfg.HistorySize)
	hub := notifier.NewHub(logger)
	channels := []notifier.Channel{notifier.NewLogChannel(logger), history, hub}
	if cfg.NotifyCommand != "" {
		cmdChannel, err := notifier.NewCommandChannel(cfg.NotifyCommand)
		if err != nil {
			logger.Error("invalid notify command", slog.Any("error", err))
			os.Exit(1)
		}
		channels = append(channels, cmdChannel)
	}

	reminderRepo := repository.NewReminderRepository()

	// Create metrics instruments
	meter := otel.Meter(cfg.ServiceName)
	metrics, err := telemetry.NewMetrics(meter, func() int64 {
		return reminderRepo.CountByStatus(model.StatusScheduled)
	})
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	reminderNotifier := notifier.New(cfg.NotificationChannel, logger, metrics, channels...)
	reminderService := service.NewReminderService(reminderRepo, reminderNotifier, logger,
		scheduler.WithUnit(cfg.DelayUnit),
		scheduler.WithDeliveryTimeout(cfg.DeliveryTimeout),
	)

	router := handler.NewRouter(
		handler.NewReminderHandler(reminderService, logger, metrics),
		handler.NewNotificationHandler(history, logger, metrics),
		hub,
	)

	// Wrap router with OpenTelemetry HTTP instrumentation
	otelHandler := otelhttp.NewHandler(router, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// Skip tracing for health checks and the long-lived stream
			return r.URL.Path != "/health" && r.URL.Path != "/api/v1/notifications/ws"
		}),
	)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      otelHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}

	// Pending reminders are abandoned; nothing survives a restart.
	if err := reminderService.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown incomplete", slog.Any("error", err))
	}
	logger.Info("server stopped",
		slog.Int64("abandoned", reminderRepo.CountByStatus(model.StatusAbandoned)),
	)
}
