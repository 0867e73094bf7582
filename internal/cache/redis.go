package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is an optional second cache tier keyed by content hash,
// grounded on the teacher's backend/libs/redis client and
// sessions-service/internal/redis.Store (JSON-encoded values, TTL, simple
// key namespace). No component in this module constructs or consults
// one: TemplateStore caches in its local LRU only, and the
// worker.sharedCache.redis settings are not read.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTier dials addr and validates the connection with PING.
func NewRedisTier(addr, password, prefix string, ttl time.Duration) (*RedisTier, error) {
	if addr == "" {
		return nil, errors.New("cache: redis addr is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisTier{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisTier) key(hash string) string {
	return fmt.Sprintf("%s:%s", r.prefix, hash)
}

// Get fetches and JSON-decodes a cached value for hash into dest.
func (r *RedisTier) Get(ctx context.Context, hash string, dest interface{}) (bool, error) {
	raw, err := r.client.Get(ctx, r.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Put JSON-encodes value and stores it under hash with the tier's TTL.
func (r *RedisTier) Put(ctx context.Context, hash string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(hash), data, r.ttl).Err()
}

// Close releases the underlying connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
