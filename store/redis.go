package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a remote Redis instance. Unlike a cache layer
// it is authoritative, so connectivity errors surface to the caller instead
// of degrading to a miss.
type Redis struct {
	rdb *redis.Client
	lastError
}

// OpenRedis connects to the given Redis address and verifies the connection
// with a ping.
func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

// Get returns the value for key, or ErrNotFound when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, r.record(ErrNotFound)
	}
	if err != nil {
		return nil, r.record(fmt.Errorf("redis: get %q: %w", key, err))
	}
	r.record(nil)
	return val, nil
}

// Put stores value under key without expiration.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return r.record(fmt.Errorf("redis: put %q: %w", key, err))
	}
	return r.record(nil)
}

// Delete removes key. Deleting an absent key succeeds.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return r.record(fmt.Errorf("redis: delete %q: %w", key, err))
	}
	return r.record(nil)
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
