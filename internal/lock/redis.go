package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lock shared by every service instance using the same Redis.
type Redis struct {
	pool   *redis.Pool
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// RedisConfig configures a Redis locker.
type RedisConfig struct {
	Prefix string
	// TTL bounds how long a crashed holder can block others.
	TTL   time.Duration
	Retry time.Duration
}

// NewRedis creates a locker on top of pool.
func NewRedis(pool *redis.Pool, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "interviewd:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 50 * time.Millisecond
	}
	return &Redis{pool: pool, prefix: cfg.Prefix, ttl: cfg.TTL, retry: cfg.Retry}
}

// NewPool dials url lazily.
func NewPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// errLockHeld marks an attempt that found the key taken; it is retried.
var errLockHeld = errors.New("lock held")

// Lock polls at the configured interval until the key is free or ctx ends.
// Redis failures are not retried.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	full := r.prefix + key
	ttl := r.ttl.Milliseconds()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := r.tryAcquire(ctx, full, token, ttl)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errLockHeld
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(r.retry)), backoff.WithMaxElapsedTime(0))
	if err != nil {
		return nil, err
	}
	return func() { r.release(full, token) }, nil
}

func (r *Redis) tryAcquire(ctx context.Context, key, token string, ttlMillis int64) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	_, err = redis.String(conn.Do("SET", key, token, "NX", "PX", ttlMillis))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) release(key, token string) {
	conn := r.pool.Get()
	defer conn.Close()
	if _, err := releaseScript.Do(conn, key, token); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release session lock")
	}
}
