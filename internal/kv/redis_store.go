// Package kv provides the shared key-value store backing per-entity state
// that outlives a session, such as brief stage entries. Values are JSON
// snapshots written in full; there are no partial updates. Writers publish
// each change so other instances can adopt the new state wholesale.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = fmt.Errorf("kv: key not found")

// RedisStore is a namespaced JSON blob store over Redis.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
}

// NewRedisStore connects to Redis and namespaces all keys and the change
// channel under the given prefix (e.g. "labdesk:stage").
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient builds a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix + ":",
		channel: prefix + ":changes",
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get unmarshals the stored JSON value for key into out. A missing key
// yields ErrNotFound; callers fall back to their default state.
func (s *RedisStore) Get(ctx context.Context, key string, out any) error {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("kv get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("kv decode %s: %w", key, err)
	}
	return nil
}

// Set stores value as JSON under key, replacing any prior value in full,
// then announces the change on the store's channel.
func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	if err := s.client.Publish(ctx, s.channel, key).Err(); err != nil {
		// the write itself succeeded; peers will catch up on next read
		log.Printf("kv: publish change for %s: %v", key, err)
	}
	return nil
}

// Delete removes key and announces the change.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	if err := s.client.Publish(ctx, s.channel, key).Err(); err != nil {
		log.Printf("kv: publish change for %s: %v", key, err)
	}
	return nil
}

// Watch subscribes to change announcements and invokes fn with each changed
// key until ctx is done. Watchers are expected to re-read the key and adopt
// the stored state wholesale, last write wins, never merging field by field.
func (s *RedisStore) Watch(ctx context.Context, fn func(key string)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
