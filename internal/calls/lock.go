package calls

import (
	"context"
	"errors"
	"sync"
	"time"

	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another caller holds the lock.
var ErrLocked = errors.New("calls: lock held by another caller")

// Locker serializes work on a key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// MemoryLocker is a process-local Locker. It does not wait: a held key
// returns ErrLocked immediately.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// RedisLocker holds a SET NX PX lock shared by every replica.
// The TTL bounds how long a crashed holder can block other callers.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, ok, err := utils.AcquireLock(ctx, l.rdb, key, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Release even if the request context is already canceled.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseLock(relCtx, l.rdb, key, token); err != nil {
			logger.From(ctx).Warn("lock release failed", "key", key, "err", err)
		}
	}, nil
}
