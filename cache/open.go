package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendLRU    = "lru"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend for Open
type Options struct {
	Backend    string
	Dir        string
	LRUSize    int
	MaxBytes   int
	RedisAddr  string
	SessionID  string // scopes redis keys; a random id is used when empty
	SessionTTL time.Duration
}

// Open builds the backend described by opts. The returned close function
// releases any connection the backend holds and is never nil.
func Open(ctx context.Context, opts Options) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryBackend(opts.MaxBytes), noop, nil
	case BackendLRU:
		b, err := NewLRUBackend(opts.LRUSize)
		if err != nil {
			return nil, noop, fmt.Errorf("create lru backend: %w", err)
		}
		return b, noop, nil
	case BackendFile:
		b, err := NewFileBackend(opts.Dir)
		if err != nil {
			return nil, noop, fmt.Errorf("create file backend: %w", err)
		}
		return b, noop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		session := opts.SessionID
		if session == "" {
			session = uuid.NewString()
		}
		return NewRedisBackend(client, "otakulist:"+session+":", opts.SessionTTL), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
