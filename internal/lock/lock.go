// Package lock provides per-key processing locks, backed by Redis when
// available and by process memory otherwise.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	// Acquire tries to take the lock. Returns true if successful.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release drops the lock if this locker still owns it.
	Release(ctx context.Context, key string) error
	// Held reports whether anyone currently holds the lock.
	Held(ctx context.Context, key string) (bool, error)
}

// New returns a Redis locker when client is non-nil, otherwise an in-memory one.
func New(client *redis.Client, ttl time.Duration) Locker {
	if client != nil {
		return NewRedisLocker(client, ttl)
	}
	return NewMemoryLocker(ttl)
}

// Connect parses redisURL and returns a Redis locker together with its client.
// An empty url yields an in-memory locker and a nil client.
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (Locker, *redis.Client, error) {
	if redisURL == "" {
		return NewMemoryLocker(ttl), nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLocker(client, ttl), client, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker uses SET NX with a TTL and a random ownership token per key.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		tokens: make(map[string]string),
	}
}

func redisKey(key string) string {
	return "lock:" + key
}

// Acquire tries to acquire the lock. Returns true if successful.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, err
	}

	ok, err := l.client.SetNX(ctx, redisKey(key), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release releases the lock only if we still own it.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{redisKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// Held reports whether the key is locked by any process.
func (l *RedisLocker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %s: %w", key, err)
	}
	return n > 0, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// MemoryLocker is a single-process locker with the same expiry semantics.
type MemoryLocker struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemoryLocker creates an in-memory locker.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		ttl:     ttl,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

// Acquire tries to acquire the lock. Returns true if successful.
func (l *MemoryLocker) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.expires[key]; ok && l.now().Before(exp) {
		return false, nil
	}
	l.expires[key] = l.now().Add(l.ttl)
	return true, nil
}

// Release drops the lock.
func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.expires, key)
	l.mu.Unlock()
	return nil
}

// Held reports whether the key is locked and not yet expired.
func (l *MemoryLocker) Held(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.expires[key]
	return ok && l.now().Before(exp), nil
}
