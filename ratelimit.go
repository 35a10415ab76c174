package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// LimitResult is the outcome of one RateLimiter check.
type LimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// limiterStorage keeps attempt timestamps per key.
type limiterStorage interface {
	// Attempts returns the attempts recorded for key after since.
	Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error)
	Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimiter allows at most max attempts per key within a sliding window.
type RateLimiter struct {
	mu      sync.Mutex
	storage limiterStorage
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewRateLimiter(storage limiterStorage, max int, window time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{storage: storage, max: max, window: window, now: now}
}

// Allow records an attempt for key unless the window is already full.
func (l *RateLimiter) Allow(ctx context.Context, key string) (LimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent, err := l.storage.Attempts(ctx, key, now.Add(-l.window))
	if err != nil {
		return LimitResult{}, fmt.Errorf("read attempts: %w", err)
	}

	if len(recent) >= l.max {
		oldest := recent[0]
		for _, t := range recent[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		return LimitResult{RetryAfter: oldest.Add(l.window).Sub(now)}, nil
	}

	if err := l.storage.Add(ctx, key, now, l.window); err != nil {
		return LimitResult{}, fmt.Errorf("record attempt: %w", err)
	}
	return LimitResult{Allowed: true, Remaining: l.max - len(recent) - 1}, nil
}

// Reset forgets every attempt for key.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.storage.Delete(ctx, key)
}

type memoryLimiterStorage struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newMemoryLimiterStorage() *memoryLimiterStorage {
	return &memoryLimiterStorage{attempts: make(map[string][]time.Time)}
}

func (m *memoryLimiterStorage) Attempts(_ context.Context, key string, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[key][:0]
	for _, t := range m.attempts[key] {
		if t.After(since) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(m.attempts, key)
		return nil, nil
	}
	m.attempts[key] = kept
	return append([]time.Time(nil), kept...), nil
}

func (m *memoryLimiterStorage) Add(_ context.Context, key string, at time.Time, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = append(m.attempts[key], at)
	return nil
}

func (m *memoryLimiterStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// redisLimiterStorage keeps attempts in a sorted set per key, scored by
// unix milliseconds.
type redisLimiterStorage struct {
	client *redis.Client
	prefix string
}

func newRedisLimiterStorage(client *redis.Client, prefix string) *redisLimiterStorage {
	return &redisLimiterStorage{client: client, prefix: prefix}
}

func (s *redisLimiterStorage) key(k string) string {
	return s.prefix + k
}

func (s *redisLimiterStorage) Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error) {
	k := s.key(key)
	if err := s.client.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(since.UnixMilli(), 10)).Err(); err != nil {
		return nil, err
	}
	zs, err := s.client.ZRangeWithScores(ctx, k, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		out = append(out, time.UnixMilli(int64(z.Score)))
	}
	return out, nil
}

func (s *redisLimiterStorage) Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	k := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, &redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
		pipe.Expire(ctx, k, ttl)
		return nil
	})
	return err
}

func (s *redisLimiterStorage) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// newRedisClient connects to url and verifies the connection.
func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
