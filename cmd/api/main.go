package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel_crm_backend/internal/adapters"
	"travel_crm_backend/internal/adapters/storage"
	"travel_crm_backend/internal/budgets"
	"travel_crm_backend/internal/contacts"
	contactsrepo "travel_crm_backend/internal/contacts/repository"
	"travel_crm_backend/internal/email"
	"travel_crm_backend/internal/events"
	historyrepo "travel_crm_backend/internal/history/repository"
	historysvc "travel_crm_backend/internal/history/service"
	apphttp "travel_crm_backend/internal/http"
	"travel_crm_backend/internal/http/router"
	"travel_crm_backend/internal/identity"
	"travel_crm_backend/internal/inbox"
	"travel_crm_backend/internal/leads"
	leadsrepo "travel_crm_backend/internal/leads/repository"
	"travel_crm_backend/internal/notification"
	"travel_crm_backend/internal/notification/relay"
	"travel_crm_backend/internal/notification/reminders"
	"travel_crm_backend/internal/notification/sse"
	"travel_crm_backend/internal/pdf"
	"travel_crm_backend/internal/rules"
	"travel_crm_backend/internal/scheduler"
	"travel_crm_backend/internal/tasks"
	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/db"
	"travel_crm_backend/platform/logger"
	"travel_crm_backend/platform/metrics"
	"travel_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if cfg.GetMigrationsEnabled() {
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	eventBus := events.NewInMemoryBus(log)
	appMetrics := metrics.New()
	val := validator.New()

	rdb, closeRedis := initRedis(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	scanTrigger, closeScheduler := initReminderTrigger(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	budgetStorage := initStorage(ctx, cfg, log)

	var gotenberg *pdf.GotenbergClient
	if cfg.IsGotenbergEnabled() {
		gotenberg = pdf.NewFromConfig(cfg)
		log.Info("gotenberg PDF generator initialized", "url", cfg.GetGotenbergURL())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	identityModule := identity.NewModule(pool, val)
	users := identityModule.Service()

	rulesModule := rules.NewModule(pool, users, val)

	historyService := historysvc.New(historyrepo.New(pool), log, appMetrics)

	contactsModule := contacts.NewModule(contacts.Dependencies{
		Pool:        pool,
		History:     adapters.NewContactHistory(historyService),
		Reader:      adapters.NewContactHistory(historyService),
		Members:     users,
		Validator:   val,
		PhoneRegion: cfg.GetPhoneDefaultRegion(),
	})

	leadHistory := adapters.NewLeadHistory(historyService)
	leadsModule := leads.NewModule(leads.Dependencies{
		Pool:            pool,
		Rules:           adapters.NewRuleSource(rulesModule.Service()),
		Contacts:        adapters.NewContactConverter(contactsModule.Service()),
		History:         leadHistory,
		HistoryReader:   leadHistory,
		Users:           users,
		Bus:             eventBus,
		Metrics:         appMetrics,
		Log:             log,
		Validator:       val,
		PhoneRegion:     cfg.GetPhoneDefaultRegion(),
		BulkConcurrency: cfg.GetBulkAssignConcurrency(),
	})

	// Cross-module lookups read the stores directly; scope checks stay in the
	// consuming service.
	contactStore := contactsrepo.New(pool)
	leadStore := leadsrepo.New(pool)

	budgetsModule := budgets.NewModule(budgets.Dependencies{
		Pool:          pool,
		People:        adapters.NewBudgetPeople(contactStore, leadStore),
		Organizations: users,
		Bus:           eventBus,
		Log:           log,
		Validator:     val,
		Gotenberg:     gotenberg,
		Storage:       budgetStorage,
		PDFBucket:     cfg.GetMinioBucketBudgetPDFs(),
		PublicBaseURL: cfg.GetAppBaseURL(),
	})

	inboxModule := inbox.NewModule(inbox.Dependencies{
		Pool:      pool,
		Contacts:  adapters.NewInboxContacts(contactStore),
		Bus:       eventBus,
		Log:       log,
		Validator: val,
	})

	tasksDeps := tasks.Dependencies{
		Pool:      pool,
		Members:   users,
		Links:     adapters.NewTaskLinks(contactStore, leadStore),
		Validator: val,
	}
	if scanTrigger != nil {
		tasksDeps.Scans = scanTrigger
	}
	tasksModule := tasks.NewModule(tasksDeps)

	// Notifications: the stream hub lives in this process. With Redis, every
	// push goes through the relay so all API replicas and the scheduler share
	// one delivery path.
	hub := sse.New(log)
	var pusher sse.Pusher = hub
	if rdb != nil {
		pusher = relay.NewPublisher(rdb, relay.DefaultChannel)
		subscriber := relay.NewSubscriber(rdb, relay.DefaultChannel, hub, log)
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				log.Error("notification relay stopped", "error", err)
			}
		}()
	}

	notificationModule := notification.New(notification.Dependencies{
		Pusher:  pusher,
		Hub:     hub,
		Sender:  email.NewSender(cfg),
		Orgs:    users,
		Config:  cfg,
		Metrics: appMetrics,
		Log:     log,
	})
	notificationModule.RegisterHandlers(eventBus)

	// Without a job queue the API scans for due tasks itself; the in-memory
	// dedup is enough for a single process.
	if !cfg.IsSchedulerEnabled() {
		dispatcher := reminders.NewDispatcher(tasksModule.Service(), reminders.NewMemoryDedup(), eventBus, log, cfg.GetReminderLookahead())
		go dispatcher.Run(ctx, cfg.GetReminderScanInterval())
		log.Info("in-process reminder scan started", "interval", cfg.GetReminderScanInterval().String())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Metrics:  appMetrics,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			identityModule,
			rulesModule,
			leadsModule,
			contactsModule,
			budgetsModule,
			inboxModule,
			tasksModule,
			notificationModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(cfg *config.Config, log *logger.Logger) (*redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notifications stay in-process")
		return nil, nil
	}
	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return nil, nil
	}
	return rdb, func() {
		_ = rdb.Close()
	}
}

func initReminderTrigger(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if !cfg.IsSchedulerEnabled() {
		log.Warn("REDIS_URL not configured; manual reminder scans disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initStorage returns nil when MinIO is not configured so budgets fall back
// to streaming PDFs.
func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.StorageService {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; budget PDFs are not archived")
		return nil
	}
	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, svc, "budget-pdfs", cfg.GetMinioBucketBudgetPDFs())
	log.Info("storage service initialized", "budgetPDFsBucket", cfg.GetMinioBucketBudgetPDFs())
	return svc
}

func ensureBucket(ctx context.Context, log *logger.Logger, svc storage.StorageService, label, bucket string) {
	if err := withRetry(ctx, log, "ensure bucket "+label, 5, time.Second, func() error {
		return svc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure bucket", "bucket", bucket, "error", err)
		panic("failed to ensure bucket " + bucket + ": " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
