package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"travel_crm_backend/internal/events"
	"travel_crm_backend/internal/tasks/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	due []repository.Reminder
}

func (f *fakeSource) DueReminders(context.Context, time.Duration, int) ([]repository.Reminder, error) {
	return f.due, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, e events.Event) { _ = b.PublishSync(ctx, e) }

func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func reminder(title string) repository.Reminder {
	return repository.Reminder{
		Task: repository.Task{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			AssignedTo:     uuid.New(),
			Title:          title,
			DueAt:          time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		},
		AssigneeName:  "Martín",
		AssigneeEmail: "martin@agencia.test",
	}
}

func TestScanNotifiesOncePerHourBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	source := &fakeSource{due: []repository.Reminder{reminder("Llamar"), reminder("Enviar vouchers")}}
	bus := &recordingBus{}
	d := NewDispatcher(source, NewRedisDedup(rdb), bus, nil, time.Hour)
	now := time.Date(2026, 5, 4, 10, 5, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	ctx := context.Background()
	if n, err := d.Scan(ctx); err != nil || n != 2 {
		t.Fatalf("first scan = %d, %v; want 2", n, err)
	}
	now = now.Add(40 * time.Minute)
	if n, err := d.Scan(ctx); err != nil || n != 0 {
		t.Fatalf("same hour scan = %d, %v; want 0", n, err)
	}
	now = now.Add(time.Hour)
	if n, err := d.Scan(ctx); err != nil || n != 2 {
		t.Fatalf("next hour scan = %d, %v; want 2", n, err)
	}

	if len(bus.events) != 4 {
		t.Fatalf("published %d events, want 4", len(bus.events))
	}
	evt, ok := bus.events[0].(events.TaskReminderDue)
	if !ok {
		t.Fatalf("unexpected event %T", bus.events[0])
	}
	if evt.Title != "Llamar" || evt.AssigneeEmail != "martin@agencia.test" {
		t.Fatalf("unexpected payload %+v", evt)
	}

	key := "crm:reminder:" + ClaimKey(source.due[0].ID, time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	if !mr.Exists(key) {
		t.Fatalf("expected dedup key %s", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > claimTTL {
		t.Fatalf("ttl = %v, want within (0, %v]", ttl, claimTTL)
	}
}

func TestMemoryDedupEvictsExpiredKeys(t *testing.T) {
	d := NewMemoryDedup()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := d.Claim(ctx, "a", time.Minute); !ok {
		t.Fatalf("first claim should succeed")
	}
	if ok, _ := d.Claim(ctx, "a", time.Minute); ok {
		t.Fatalf("second claim inside the window should fail")
	}
	if ok, _ := d.Claim(ctx, "b", time.Hour); !ok {
		t.Fatalf("other key should be claimable")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := d.Claim(ctx, "a", time.Minute); !ok {
		t.Fatalf("claim after expiry should succeed")
	}
	now = now.Add(2 * time.Hour)
	if ok, _ := d.Claim(ctx, "c", time.Minute); !ok {
		t.Fatalf("claim c should succeed")
	}
	if n := d.Len(); n != 1 {
		t.Fatalf("expired keys were not evicted, %d live", n)
	}
}

func TestClaimKeyBucketsByHour(t *testing.T) {
	id := uuid.New()
	a := ClaimKey(id, time.Date(2026, 5, 4, 10, 1, 0, 0, time.UTC))
	b := ClaimKey(id, time.Date(2026, 5, 4, 10, 59, 0, 0, time.UTC))
	c := ClaimKey(id, time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC))
	if a != b {
		t.Fatalf("same hour should share a key: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different hours must not share a key")
	}
	local := time.Date(2026, 5, 4, 7, 30, 0, 0, time.FixedZone("ART", -3*3600))
	if ClaimKey(id, local) != a {
		t.Fatalf("keys must not depend on the caller's zone")
	}
}

type cancelingBus struct {
	recordingBus
	cancel context.CancelFunc
}

func (b *cancelingBus) PublishSync(ctx context.Context, e events.Event) error {
	_ = b.recordingBus.PublishSync(ctx, e)
	b.cancel()
	return nil
}

func TestRunScansImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := &cancelingBus{cancel: cancel}
	d := NewDispatcher(&fakeSource{due: []repository.Reminder{reminder("Confirmar hotel")}}, NewMemoryDedup(), bus, nil, time.Hour)

	done := make(chan struct{})
	go func() {
		d.Run(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.events) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.events))
	}
}
