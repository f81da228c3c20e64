package session

import (
	"context"
	"fmt"
	"time"
)

// Backends accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// RedisPrefix namespaces save keys in a shared Redis.
const RedisPrefix = "cyoa:"

// Open builds the save backend named by kind. The returned close func is
// never nil.
func Open(ctx context.Context, kind, path, url string, ttl time.Duration) (Store[[]byte], func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case "", BackendMemory:
		return NewMemoryStore[[]byte](), noop, nil
	case BackendFile:
		s, err := NewFileStore(path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, url, RedisPrefix, ttl)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", kind)
}
