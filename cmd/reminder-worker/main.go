package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/hospital-booking/internal/booking"
	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
	"github.com/careslot/hospital-booking/internal/notify"
	"github.com/careslot/hospital-booking/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With("service", "reminder-worker")
	logger.Info("starting", "env", cfg.Env, "interval", cfg.WorkerInterval.String(), "window", cfg.ReminderWindow.String())

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

	repo := booking.NewPgRepository(pgPool, cfg.LockTimeout)
	svc := booking.NewService(repo, logger,
		booking.WithNotifier(notify.NewDispatcher(sender, logger)))

	runOnce(rootCtx, svc, logger, cfg.ReminderWindow, cfg.WorkerInterval)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger, cfg.ReminderWindow, cfg.WorkerInterval)
		}
	}
}

// runOnce reminds appointments whose slot starts inside a window one
// interval wide, ending ReminderWindow from now. Each tick advances the
// window by exactly one interval, so an appointment is reminded once.
func runOnce(ctx context.Context, svc *booking.Service, logger *logging.Logger, window, interval time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	now := time.Now()
	from := now.Add(window - interval)
	until := now.Add(window)

	start := time.Now()
	if err := svc.SendReminders(runCtx, from, until); err != nil {
		logger.Error("reminder run failed", "error", err)
		return
	}
	logger.Info("reminder run complete", "duration", time.Since(start).String())
}
