package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"appfeedback/internal/config"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// NewRedisClient connects to the configured Redis and pings it. It returns
// nil without error when no address is configured.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: config.RedisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.RedisDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "redis ping %s: %v", cfg.Addr, err)
	}
	return rdb, nil
}

// SweepLock keeps retention sweeps from running concurrently.
type SweepLock interface {
	// TryAcquire takes the lock without waiting. acquired is false when
	// another holder owns it; release must be called once the sweep is done.
	TryAcquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// NewSweepLock returns a Redis lock when rdb is set and a process-local lock otherwise.
func NewSweepLock(rdb *goredis.Client, keyPrefix string, ttl time.Duration) SweepLock {
	if rdb == nil {
		return &LocalSweepLock{}
	}
	return NewRedisSweepLock(rdb, keyPrefix+":sweep_lock", ttl)
}

// LocalSweepLock guards sweeps within one process.
type LocalSweepLock struct {
	mu sync.Mutex
}

// TryAcquire implements SweepLock.
func (l *LocalSweepLock) TryAcquire(context.Context) (func(context.Context) error, bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.mu.Unlock()
		return nil
	}, true, nil
}

// releaseScript deletes the lock key only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSweepLock is a SET NX PX lock shared by every scheduler instance. The
// TTL bounds how long a crashed holder blocks other sweeps.
type RedisSweepLock struct {
	rdb *goredis.Client
	key string
	ttl time.Duration
}

// NewRedisSweepLock creates a lock on key.
func NewRedisSweepLock(rdb *goredis.Client, key string, ttl time.Duration) *RedisSweepLock {
	if rdb == nil {
		panic("NewRedisSweepLock: redis client is nil")
	}
	if ttl <= 0 {
		ttl = config.DefaultSweepLockTTL
	}
	return &RedisSweepLock{rdb: rdb, key: key, ttl: ttl}
}

// TryAcquire implements SweepLock.
func (l *RedisSweepLock) TryAcquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error) {
	ctx, span := observability.TraceScrubFunction(ctx, "acquire_sweep_lock", attribute.String("lock.key", l.key))
	defer observability.FinishSpan(span, &err)

	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to take sweep lock: %v", err)
	}
	span.SetAttributes(attribute.Bool("lock.acquired", ok))
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to release sweep lock: %v", err)
		}
		return nil
	}, true, nil
}
