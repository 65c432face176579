// Package idempotency replays stored responses for repeated write requests
// carrying the same Idempotency-Key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 10000
	DefaultTTL       = 24 * time.Hour
)

// Response is a stored reply.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store keeps responses by idempotency key.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool, error)
	Set(ctx context.Context, key string, resp *Response) error
}

// LRUStore is an in-process Store with size and age bounds. The first
// response stored under a key wins, matching RedisStore.
type LRUStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, Response]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRUStore{cache: expirable.NewLRU[string, Response](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, key string) (*Response, bool, error) {
	resp, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (s *LRUStore) Set(_ context.Context, key string, resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Peek skips expired entries that have not been swept yet.
	if _, ok := s.cache.Peek(key); ok {
		return nil
	}
	s.cache.Add(key, *resp)
	return nil
}

const redisKeyPrefix = "idem:"

// RedisStore shares stored responses across replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
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

func (s *RedisStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, true, nil
}

// Set keeps the first response stored for a key.
func (s *RedisStore) Set(ctx context.Context, key string, resp *Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, redisKeyPrefix+key, b, s.ttl).Err()
}
