package persistence_test

import (
	"context"
	"strings"
	"sync"

	"github.com/kodflow/actorcore/persistence"
)

// memAdapter is a minimal in-memory persistence.StorageAdapter used only
// by this package's tests. It is intentionally separate from
// storage/boltadapter, which is the module's reference durable adapter.
type memAdapter struct {
	mu    sync.Mutex
	store map[string]persistence.PersistedState
}

func newMemAdapter() *memAdapter {
	return &memAdapter{store: make(map[string]persistence.PersistedState)}
}

func (a *memAdapter) Save(_ context.Context, key string, payload persistence.PersistedState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[key] = payload
	return nil
}

func (a *memAdapter) Load(_ context.Context, key string) (persistence.PersistedState, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.store[key]
	return v, ok, nil
}

func (a *memAdapter) Delete(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.store[key]
	delete(a.store, key)
	return ok, nil
}

func (a *memAdapter) Exists(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.store[key]
	return ok, nil
}

func (a *memAdapter) ListKeys(_ context.Context, prefix string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var keys []string
	for k := range a.store {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
