package securestore

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

var _ Backend = (*CachedBackend)(nil)

const DefaultCacheTTL = 5 * time.Second

// CachedBackend is a read-through, write-through freecache layer in front of
// another backend. Keys listing always goes to the underlying backend.
// Entries expire after the TTL, so writes made by another process sharing
// the same backend become visible within that window.
type CachedBackend struct {
	backend    Backend
	cache      *freecache.Cache
	ttlSeconds int
}

func NewCachedBackend(backend Backend, cacheSizeMB int, ttl time.Duration) *CachedBackend {
	if cacheSizeMB <= 0 {
		cacheSizeMB = 1
	}
	return newCachedBackend(backend, ttl, freecache.NewCache(cacheSizeMB*1024*1024))
}

// NewCachedBackendWithTimer is NewCachedBackend with the expiry clock under the caller's control.
func NewCachedBackendWithTimer(backend Backend, cacheSizeMB int, ttl time.Duration, timer freecache.Timer) *CachedBackend {
	if cacheSizeMB <= 0 {
		cacheSizeMB = 1
	}
	return newCachedBackend(backend, ttl, freecache.NewCacheCustomTimer(cacheSizeMB*1024*1024, timer))
}

func newCachedBackend(backend Backend, ttl time.Duration, cache *freecache.Cache) *CachedBackend {
	// freecache treats 0 as "never expires"
	ttlSeconds := int(ttl.Round(time.Second) / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = int(DefaultCacheTTL / time.Second)
	}
	return &CachedBackend{
		backend:    backend,
		cache:      cache,
		ttlSeconds: ttlSeconds,
	}
}

func (b *CachedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if cached, err := b.cache.Get([]byte(key)); err == nil {
		return string(cached), true, nil
	}

	value, found, err := b.backend.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	if err := b.cache.Set([]byte(key), []byte(value), b.ttlSeconds); err != nil {
		log.Debugf("store cache: skip caching [%s]: %s", key, err)
	}

	return value, true, nil
}

func (b *CachedBackend) Set(ctx context.Context, key, value string) error {
	if err := b.backend.Set(ctx, key, value); err != nil {
		b.cache.Del([]byte(key))
		return err
	}
	if err := b.cache.Set([]byte(key), []byte(value), b.ttlSeconds); err != nil {
		// entry too large for the cache, make sure no stale copy is served
		b.cache.Del([]byte(key))
	}
	return nil
}

func (b *CachedBackend) Remove(ctx context.Context, key string) error {
	b.cache.Del([]byte(key))
	return b.backend.Remove(ctx, key)
}

func (b *CachedBackend) Keys(ctx context.Context) ([]string, error) {
	return b.backend.Keys(ctx)
}

func (b *CachedBackend) CacheStats() (entries int64, hitRate float64) {
	return b.cache.EntryCount(), b.cache.HitRate()
}
