package securestore

import (
	"context"
	"sort"
	"sync"
)

// Backend is the host key-value storage the Store persists its encrypted
// records into. Get reports found=false for an absent key, without an error.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

var _ Backend = (*MemoryBackend)(nil)

type MemoryBackend struct {
	mutex sync.RWMutex
	items map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items: map[string]string{},
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	value, ok := b.items[key]
	return value, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.items[key] = value
	return nil
}

func (b *MemoryBackend) Remove(_ context.Context, key string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.items, key)
	return nil
}

func (b *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	keys := make([]string, 0, len(b.items))
	for k := range b.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
