package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps saves as plain Redis strings under Prefix.
type RedisStore struct {
	client *redis.Client
	Prefix string
	// TTL expires idle saves; zero keeps them forever.
	TTL time.Duration
}

// NewRedisStore connects to url (redis://...) and checks the connection.
func NewRedisStore(ctx context.Context, url, prefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, Prefix: prefix, TTL: ttl}, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.Prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, v []byte) error {
	return s.client.Set(ctx, s.key(id), v, s.TTL).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) NewID() string {
	return newID()
}
