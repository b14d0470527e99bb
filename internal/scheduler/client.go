package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"travel_crm_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// ScanTrigger enqueues an immediate reminder scan.
type ScanTrigger interface {
	TriggerReminderScan(ctx context.Context, requestedBy string) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := clientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) TriggerReminderScan(ctx context.Context, requestedBy string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewReminderScanTask(ReminderScanPayload{RequestedBy: requestedBy})
	if err != nil {
		return err
	}

	// Unique keeps a burst of manual triggers from piling up scans.
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(scanUniqueTTL))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// NewRedisClient builds a go-redis client from the same settings the
// scheduler uses, for pub/sub relays and reminder dedup.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfig(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func clientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	return redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfig(base *tls.Config, insecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if insecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}
