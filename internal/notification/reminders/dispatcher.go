package reminders

import (
	"context"
	"fmt"
	"time"

	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/tasks/repository"
	"travel_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultLookahead = 15 * time.Minute
	defaultBatchSize = 500
	bucketSize       = time.Hour
	// Keys outlive their bucket so a late scan in the next hour cannot
	// re-claim the previous bucket.
	claimTTL = 2 * bucketSize
)

// Source lists open tasks due within lookahead of now.
type Source interface {
	DueReminders(ctx context.Context, lookahead time.Duration, limit int) ([]repository.Reminder, error)
}

type Dispatcher struct {
	source    Source
	dedup     Dedup
	bus       events.Bus
	log       *logger.Logger
	lookahead time.Duration
	batch     int
	now       func() time.Time
}

func NewDispatcher(source Source, dedup Dedup, bus events.Bus, log *logger.Logger, lookahead time.Duration) *Dispatcher {
	if dedup == nil {
		dedup = NewMemoryDedup()
	}
	if log == nil {
		log = logger.Nop()
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Dispatcher{
		source:    source,
		dedup:     dedup,
		bus:       bus,
		log:       log,
		lookahead: lookahead,
		batch:     defaultBatchSize,
		now:       time.Now,
	}
}

// ClaimKey identifies one reminder window of a task.
func ClaimKey(taskID uuid.UUID, at time.Time) string {
	return taskID.String() + ":" + at.UTC().Truncate(bucketSize).Format("2006010215")
}

// Scan publishes TaskReminderDue for every due task not yet reminded in the
// current hour and returns how many were published.
func (d *Dispatcher) Scan(ctx context.Context) (int, error) {
	due, err := d.source.DueReminders(ctx, d.lookahead, d.batch)
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	now := d.now()
	sent := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := d.dedup.Claim(ctx, ClaimKey(r.ID, now), claimTTL)
		if err != nil {
			d.log.Warn("reminder dedup failed", "task_id", r.ID.String(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		if d.bus != nil {
			err := d.bus.PublishSync(ctx, events.TaskReminderDue{
				BaseEvent:      events.NewBaseEvent(),
				TaskID:         r.ID,
				OrganizationID: r.OrganizationID,
				AssignedTo:     r.AssignedTo,
				AssigneeName:   r.AssigneeName,
				AssigneeEmail:  r.AssigneeEmail,
				Title:          r.Title,
				DueAt:          r.DueAt,
			})
			if err != nil {
				d.log.Warn("reminder delivery failed", "task_id", r.ID.String(), "error", err)
			}
		}
		sent++
	}
	if sent > 0 {
		d.log.Info("task reminders dispatched", "count", sent, "due", len(due))
	}
	return sent, nil
}

// Run scans immediately and then every interval until ctx is done. It serves
// single-process deployments without a job queue.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	d.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	sent, err := d.Scan(ctx)
	if err != nil && ctx.Err() == nil {
		d.log.Warn("reminder scan failed", "error", err)
		return
	}
	if sent > 0 {
		d.log.Info("task reminders published", "count", sent)
	}
}
