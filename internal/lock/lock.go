package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker provides mutual exclusion scoped to a string key. Reconciliation
// takes a per-payment lock so a browser return racing a webhook cannot
// interleave the fetch/map/record sequence for the same payment.
type Locker interface {
	// Acquire blocks until the key's lock is held or ctx is done. The
	// returned function releases the lock.
	Acquire(ctx context.Context, key string) (func(), error)
}

type redisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	for {
		ok, err := l.client.SetNX(ctx, full, "1", l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				l.client.Del(context.Background(), full)
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

type memoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *memoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// New builds a Redis-backed locker and falls back to in-process mutexes
// on failure. The TTL bounds how long a crashed holder can wedge a key.
func New(addr, pass string, db int, ttl time.Duration) (Locker, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if addr == "" {
		return &memoryLocker{locks: make(map[string]*sync.Mutex)}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return &memoryLocker{locks: make(map[string]*sync.Mutex)}, err
	}

	return &redisLocker{client: client, prefix: "paylock", ttl: ttl}, nil
}
