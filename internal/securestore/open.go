package securestore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type OpenParams struct {
	Backend       string
	SQLitePath    string
	RedisClient   *redis.Client
	RedisPrefix   string
	CacheSizeMB   int
	CacheTTL      time.Duration
	CapacityBytes int64
}

// NewBackend builds the host storage named by params.Backend, optionally
// fronted by an in-process cache. The returned func releases it.
func NewBackend(params OpenParams) (Backend, func() error, error) {
	closeFunc := func() error { return nil }

	var backend Backend
	switch params.Backend {
	case BackendMemory:
		backend = NewMemoryBackend()
	case BackendRedis:
		if params.RedisClient == nil {
			return nil, nil, fmt.Errorf("redis store backend needs a redis client")
		}
		backend = NewRedisBackend(params.RedisClient, params.RedisPrefix)
	case BackendSQLite:
		sqliteBackend, err := NewSQLiteBackend(params.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		backend = sqliteBackend
		closeFunc = sqliteBackend.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", params.Backend)
	}
	log.Debugf("using [%s] store backend", params.Backend)

	if params.CacheSizeMB > 0 {
		backend = NewCachedBackend(backend, params.CacheSizeMB, params.CacheTTL)
	}

	return backend, closeFunc, nil
}

// Open builds the backend, loads the device secret and returns the ready store.
func Open(ctx context.Context, params OpenParams, metricsManager *metrics.Manager) (*Store, func() error, error) {
	backend, closeFunc, err := NewBackend(params)
	if err != nil {
		return nil, nil, fmt.Errorf("new store backend: %w", err)
	}

	cipher, err := LoadOrCreateCipher(ctx, backend)
	if err != nil {
		_ = closeFunc()
		return nil, nil, fmt.Errorf("load store cipher: %w", err)
	}

	return NewStore(backend, cipher, params.CapacityBytes, metricsManager), closeFunc, nil
}
