package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values in Redis so several server instances share the
// same operator state.
type RedisStore struct {
	client   redis.Cmdable
	prefix   string
	maxBytes int64
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. Every key is stored as prefix+key.
func NewRedisStore(client redis.Cmdable, prefix string, maxBytes int64) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, maxBytes: maxBytes}
}

// DialRedis connects to addr and pings it before returning.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("kv: ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, v any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("kv: redis get %s: %w", key, err)
	}
	return decode(raw, v)
}

func (s *RedisStore) Set(ctx context.Context, key string, v any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := encode(v, s.maxBytes, time.Now())
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("kv: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("kv: redis del %s: %w", key, err)
	}
	return nil
}
