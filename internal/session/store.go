package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys stored per checkout session.
const (
	KeyFingerprintNonce = "fingerprint_nonce"
	KeyOrderSecret      = "order_secret"
	KeyCardFields       = "card_fields"
	KeyOAuthState       = "oauth_state"
	KeyOAuthTenant      = "oauth_tenant"
)

// Store holds transient per-checkout-session values: the fingerprint
// nonce, the order secret saved at payment time, and buyer-entered card
// fields. Values expire with the session TTL.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
}

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisStore) redisKey(sessionID, key string) string {
	return s.prefix + ":" + sessionID + ":" + key
}

func (s *redisStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.client.Get(ctx, s.redisKey(sessionID, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (s *redisStore) Set(ctx context.Context, sessionID, key, value string) error {
	return s.client.Set(ctx, s.redisKey(sessionID, key), value, s.ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, sessionID, key string) error {
	return s.client.Del(ctx, s.redisKey(sessionID, key)).Err()
}

type memoryEntry struct {
	value  string
	expiry time.Time
}

type memoryStore struct {
	mu     sync.Mutex
	items  map[string]memoryEntry
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{
		items:  make(map[string]memoryEntry),
		ttl:    ttl,
		nextGC: time.Now().Add(ttl),
	}
}

func (s *memoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[sessionID+":"+key]
	if !ok || e.expiry.Before(time.Now()) {
		return "", nil
	}
	return e.value, nil
}

func (s *memoryStore) Set(_ context.Context, sessionID, key, value string) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[sessionID+":"+key] = memoryEntry{value: value, expiry: now.Add(s.ttl)}
	if now.After(s.nextGC) {
		for k, e := range s.items {
			if e.expiry.Before(now) {
				delete(s.items, k)
			}
		}
		s.nextGC = now.Add(s.ttl)
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID+":"+key)
	return nil
}

// NewStore builds a Redis session store and falls back to in-memory on
// failure.
func NewStore(addr, pass string, db int, ttl time.Duration) (Store, error) {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if addr == "" {
		return newMemoryStore(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryStore(ttl), err
	}

	return &redisStore{client: client, prefix: "checkout", ttl: ttl}, nil
}
