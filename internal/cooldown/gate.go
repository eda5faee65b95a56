// Package cooldown spaces out calls to the rate-sensitive report export endpoint.
package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/observability"
)

// Gate admits one caller at a time, at most once per interval.
type Gate interface {
	// Wait blocks until the caller may proceed or ctx is done.
	Wait(ctx context.Context) error
	Close() error
}

// MemoryGate spaces callers within one process.
type MemoryGate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewMemoryGate creates a gate that admits one caller per interval. The first
// caller is admitted immediately.
func NewMemoryGate(interval time.Duration) *MemoryGate {
	return &MemoryGate{interval: interval}
}

// Wait reserves the next free slot and sleeps until it arrives.
func (g *MemoryGate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	now := time.Now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close implements Gate.
func (g *MemoryGate) Close() error { return nil }

// New builds the gate selected by cfg.
func New(cfg config.CooldownConfig, interval time.Duration, logger *observability.Logger) (Gate, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryGate(interval), nil
	case "redis":
		return NewRedisGate(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		}, interval, logger)
	default:
		return nil, fmt.Errorf("unknown cooldown driver %q", cfg.Driver)
	}
}
