package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spherical/autoslides/internal/observability"
)

const (
	defaultKey   = "autoslides:report-fetch"
	minPollDelay = 10 * time.Millisecond
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisGate spaces callers across processes sharing one Redis. A caller is
// admitted when it manages to SET the key with NX; the key's expiry is the
// cooldown.
type RedisGate struct {
	client   *redis.Client
	key      string
	interval time.Duration
	owner    string
	logger   *observability.Logger
}

// NewRedisGate connects to Redis and verifies the connection.
func NewRedisGate(cfg RedisConfig, interval time.Duration, logger *observability.Logger) (*RedisGate, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = defaultKey
	}

	return &RedisGate{
		client:   client,
		key:      key,
		interval: interval,
		owner:    uuid.NewString(),
		logger:   observability.OrDefault(logger).WithComponent("cooldown"),
	}, nil
}

// Wait polls until the key can be claimed.
func (g *RedisGate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	for {
		ok, err := g.client.SetNX(ctx, g.key, g.owner, g.interval).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return nil
		}

		delay, err := g.client.PTTL(ctx, g.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("redis pttl: %w", err)
		}
		// A key without expiry (-1) or already gone (-2) is retried shortly.
		if delay < minPollDelay {
			delay = minPollDelay
		}

		g.logger.Debug().Dur("delay", delay).Msg("Waiting for report export cooldown")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the Redis connection.
func (g *RedisGate) Close() error {
	return g.client.Close()
}
