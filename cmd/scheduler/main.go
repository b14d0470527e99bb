package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel_crm_backend/internal/adapters"
	contactsrepo "travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/internal/email"
	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/identity"
	leadsrepo "travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/internal/notification"
	"travel_crm_backend/internal/notification/relay"
	"travel_crm_backend/internal/notification/reminders"
	"travel_crm_backend/internal/scheduler"
	"travel_crm_backend/internal/tasks"
	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	if !cfg.IsSchedulerEnabled() {
		log.Error("REDIS_URL is required for the scheduler")
		panic("REDIS_URL is required for the scheduler")
	}

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

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	identityModule := identity.NewModule(pool, val)
	tasksModule := tasks.NewModule(tasks.Dependencies{
		Pool:      pool,
		Members:   identityModule.Service(),
		Links:     adapters.NewTaskLinks(contactsrepo.New(pool), leadsrepo.New(pool)),
		Validator: val,
	})

	// This process has no stream hub. Pushes travel over the relay to the API
	// replicas, which deliver them to connected clients.
	notificationModule := notification.New(notification.Dependencies{
		Pusher: relay.NewPublisher(rdb, relay.DefaultChannel),
		Sender: email.NewSender(cfg),
		Orgs:   identityModule.Service(),
		Config: cfg,
		Log:    log,
	})
	notificationModule.RegisterHandlers(eventBus)

	dispatcher := reminders.NewDispatcher(
		tasksModule.Service(),
		reminders.NewRedisDedup(rdb),
		eventBus,
		log,
		cfg.GetReminderLookahead(),
	)

	worker, err := scheduler.NewWorker(cfg, dispatcher, cfg.GetReminderScanInterval(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("reminder scan scheduled",
		"interval", cfg.GetReminderScanInterval().String(),
		"lookahead", cfg.GetReminderLookahead().String(),
	)
	worker.Run(ctx)
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
