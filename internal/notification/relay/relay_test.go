package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"travel_crm_backend/internal/notification/sse"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type recorder struct {
	mu   sync.Mutex
	envs []sse.Envelope
}

func (r *recorder) Deliver(env sse.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recorder) snapshot() []sse.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sse.Envelope(nil), r.envs...)
}

func TestPublisherReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	target := &recorder{}
	sub := NewSubscriber(rdb, "", target, nil)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(mr.PubSubChannels("")) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	user := uuid.New()
	env := sse.Envelope{OrganizationID: uuid.New(), UserID: &user, Event: sse.Event{Type: sse.EventTaskReminder, Message: "Llamar"}}
	if err := NewPublisher(rdb, "").Push(ctx, env); err != nil {
		t.Fatalf("Push: %v", err)
	}

	var got []sse.Envelope
	for len(got) == 0 {
		got = target.snapshot()
		if time.Now().After(deadline) {
			t.Fatalf("envelope was not relayed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if e := got[0]; e.UserID == nil || *e.UserID != user || e.Event.Type != sse.EventTaskReminder || e.Event.Message != "Llamar" {
		t.Fatalf("unexpected envelope %+v", e)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}

type failingPusher struct{ err error }

func (f failingPusher) Push(context.Context, sse.Envelope) error { return f.err }

func TestFanoutReturnsFirstErrorAfterTryingAll(t *testing.T) {
	hub := sse.New(nil)
	boom := errors.New("boom")
	f := Fanout{failingPusher{err: boom}, hub, failingPusher{err: errors.New("later")}}

	if err := f.Push(context.Background(), sse.Envelope{OrganizationID: uuid.New()}); !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
}
