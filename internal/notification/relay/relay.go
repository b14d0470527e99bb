// Package relay carries SSE envelopes between processes over Redis pub/sub,
// so events raised by the scheduler reach streams held by the API.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"travel_crm_backend/internal/notification/sse"
	"travel_crm_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel shared by publishers and the API.
const DefaultChannel = "crm:notifications"

// Publisher pushes envelopes to Redis. It implements sse.Pusher.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) Push(ctx context.Context, env sse.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}

// Deliverer receives envelopes read from the channel.
type Deliverer interface {
	Deliver(env sse.Envelope)
}

// Subscriber forwards envelopes from Redis to a local hub.
type Subscriber struct {
	rdb     *redis.Client
	channel string
	target  Deliverer
	log     *logger.Logger
}

func NewSubscriber(rdb *redis.Client, channel string, target Deliverer, log *logger.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{rdb: rdb, channel: channel, target: target, log: log}
}

// Run blocks until ctx is cancelled. Malformed payloads are logged and skipped.
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.log.Info("notification relay subscribed", "channel", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env sse.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Warn("notification relay dropped payload", "error", err)
				continue
			}
			s.target.Deliver(env)
		}
	}
}

// Fanout pushes to several pushers and returns the first error.
type Fanout []sse.Pusher

func (f Fanout) Push(ctx context.Context, env sse.Envelope) error {
	var first error
	for _, p := range f {
		if err := p.Push(ctx, env); err != nil && first == nil {
			first = err
		}
	}
	return first
}
