// Package ratelimit spaces out repeated requests for the same key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter admits at most one request per key within a window.
type Limiter interface {
	// Allow claims the window for key. It returns false when a previous
	// accepted request for key is still inside the window.
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is a single-process limiter.
type Memory struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewMemory returns a limiter keeping state in a map.
func NewMemory(window time.Duration) *Memory {
	return &Memory{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.last[key]; ok && now.Sub(at) < m.window {
		return false, nil
	}
	m.last[key] = now

	// Drop settled keys so the map tracks only open windows.
	for k, at := range m.last {
		if now.Sub(at) >= m.window {
			delete(m.last, k)
		}
	}
	return true, nil
}

// Redis shares limiter state across instances using SET NX with a TTL.
type Redis struct {
	client    *redis.Client
	window    time.Duration
	keyPrefix string
}

// NewRedis returns a Redis-backed limiter.
func NewRedis(client *redis.Client, window time.Duration, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &Redis{client: client, window: window, keyPrefix: keyPrefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.window <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.keyPrefix+key, "1", r.window).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return ok, nil
}
