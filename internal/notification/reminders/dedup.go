// Package reminders turns due tasks into reminder events, at most once per
// task and hour.
package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup claims a key for a time window. Claim reports false when the key
// was already claimed inside the window.
type Dedup interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDedup claims keys with SET NX and lets Redis expire them.
type RedisDedup struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDedup(rdb *redis.Client) *RedisDedup {
	return &RedisDedup{rdb: rdb, prefix: "crm:reminder:"}
}

func (d *RedisDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+key, 1, ttl).Result()
}

// MemoryDedup is the single-process fallback. Expired keys are evicted on
// every claim so the map stays bounded by the active window.
type MemoryDedup struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{expires: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDedup) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, k)
		}
	}
	if _, ok := d.expires[key]; ok {
		return false, nil
	}
	d.expires[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of live keys.
func (d *MemoryDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expires)
}
