package scheduler

import (
	"context"
	"fmt"
	"time"

	"travel_crm_backend/platform/config"
	"travel_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ReminderScanner publishes reminders for due tasks.
type ReminderScanner interface {
	Scan(ctx context.Context) (int, error)
}

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	scanner   ReminderScanner
	log       *logger.Logger
}

// NewWorker builds the asynq server and, when interval is positive, a
// periodic scheduler that enqueues reminders.scan every interval.
func NewWorker(cfg config.SchedulerConfig, scanner ReminderScanner, interval time.Duration, log *logger.Logger) (*Worker, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}
	queue := queueName(cfg)

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		scanner: scanner,
		log:     log,
	}
	w.mux.HandleFunc(TaskReminderScan, w.handleReminderScan)

	if interval > 0 {
		w.scheduler = asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})
		task, err := NewReminderScanTask(ReminderScanPayload{RequestedBy: "periodic"})
		if err != nil {
			return nil, err
		}
		spec := fmt.Sprintf("@every %s", interval)
		if _, err := w.scheduler.Register(spec, task, asynq.Queue(queue), asynq.Unique(interval)); err != nil {
			return nil, fmt.Errorf("register reminder scan: %w", err)
		}
	}

	return w, nil
}

func (w *Worker) handleReminderScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReminderScanPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	sent, err := w.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	w.log.Debug("reminder scan finished", "requested_by", payload.RequestedBy, "sent", sent)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.log.Error("reminder scheduler failed to start", "error", err)
		} else {
			defer w.scheduler.Shutdown()
		}
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
