package registry_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/registry"
)

// fakeKVStore is an in-memory KV with TTL for unit tests.
type fakeKVStore struct {
	mu      sync.Mutex
	data    map[string]fakeKVItem
	failGet bool
	sets    int
}

type fakeKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{
		data: make(map[string]fakeKVItem),
	}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet {
		return "", errors.New("connection refused")
	}
	item, ok := f.data[key]
	if !ok {
		return "", registry.ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(f.data, key)
		return "", registry.ErrCacheMiss
	}
	return item.value, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	f.data[key] = fakeKVItem{value: value, expires: exp}
	f.sets++
	return nil
}

func (f *fakeKVStore) Del(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.data, key)
	return nil
}
