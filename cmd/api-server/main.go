package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/careslot/hospital-booking/internal/api"
	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/calendar"
	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
	"github.com/careslot/hospital-booking/internal/notify"
	"github.com/careslot/hospital-booking/internal/observability/metrics"
	redisclient "github.com/careslot/hospital-booking/internal/redis"
	"github.com/careslot/hospital-booking/pkg/logging"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server")
	logger.Info("starting", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		// The cache is optional; the API still serves from Postgres.
		logger.Warn("redis unavailable, running without slot cache", "error", err)
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("redis close failed", "error", err)
			}
		}()
		logger.Info("connected to redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	repo := booking.NewPgRepository(pgPool, cfg.LockTimeout)

	opts := []booking.Option{booking.WithMetrics(bookingMetrics)}

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		sender = notify.NewStubEmailSender(logger)
	}
	opts = append(opts, booking.WithNotifier(notify.NewDispatcher(sender, logger)))

	if gsync, err := calendar.NewGoogleSync(rootCtx, cfg.GoogleCredentialsFile, cfg.GoogleCalendarID, logger); err != nil {
		logger.Warn("calendar sync disabled", "error", err)
	} else if gsync != nil {
		opts = append(opts, booking.WithCalendar(gsync))
		logger.Info("calendar sync enabled", "calendar_id", cfg.GoogleCalendarID)
	}

	if rdb != nil {
		opts = append(opts, booking.WithSlotCache(redisclient.NewSlotCache(rdb, cfg.SlotCacheTTL, logger)))
	}

	svc := booking.NewService(repo, logger, opts...)

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		PgPool:   pgPool,
		Redis:    rdb,
		Logger:   logger,
		Registry: registry,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	case <-rootCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
