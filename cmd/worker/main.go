package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/companies"
	"outreach_backend/internal/emails"
	"outreach_backend/internal/events"
	"outreach_backend/internal/leads"
	"outreach_backend/internal/mailer"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/scrapejobs"
	"outreach_backend/internal/scrapejobs/scraper"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	sender := initSender(cfg, log)

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = schedClient.Close() }()

	// Worker-side service wiring (no HTTP handlers required).
	companiesModule := companies.NewModule(pool, eventBus, val, log)
	leadsModule := leads.NewModule(pool, eventBus, val, log)
	emailsModule := emails.NewModule(pool, eventBus, val, log, sender, schedClient, cfg, leadsModule.Service())
	scrapeJobsModule := scrapejobs.NewModule(pool, eventBus, val, log, schedClient, scraper.NewNoop(log), companiesModule.Service())

	// Worker-side sends publish the same events the API does.
	companiesModule.RegisterHandlers(eventBus)
	leadsModule.RegisterHandlers(eventBus)

	worker, err := scheduler.NewWorker(cfg, scrapeJobsModule.Service(), emailsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// initSender picks the SMTP sender when email delivery is configured and a
// logging no-op otherwise.
func initSender(cfg config.SMTPConfig, log *logger.Logger) mailer.Sender {
	if !cfg.GetEmailEnabled() {
		log.Warn("email delivery disabled; outreach sends are logged only")
		return mailer.NewNoopSender(log)
	}

	return mailer.NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
