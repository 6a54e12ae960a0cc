package server_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/server"
)

// memAdapter is a minimal in-memory persistence.StorageAdapter, scoped to
// this package's tests so the server engine's persistence integration can
// be exercised without a real storage backend.
type memAdapter struct {
	mu    sync.Mutex
	store map[string]persistence.PersistedState
}

func newMemAdapter() *memAdapter {
	return &memAdapter{store: make(map[string]persistence.PersistedState)}
}

func (a *memAdapter) Save(ctx context.Context, key string, state persistence.PersistedState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[key] = state
	return nil
}

func (a *memAdapter) Load(ctx context.Context, key string) (persistence.PersistedState, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.store[key]
	return s, ok, nil
}

func (a *memAdapter) Delete(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.store[key]
	delete(a.store, key)
	return ok, nil
}

func (a *memAdapter) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.store[key]
	return ok, nil
}

func (a *memAdapter) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.store))
	for k := range a.store {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestServer_RestoresPersistedStateOnStart(t *testing.T) {
	adapter := newMemAdapter()

	opts := server.Options[int]{
		Persistence: &persistence.Options[int]{
			Adapter:        adapter,
			Key:            "counter-a",
			RestoreOnStart: true,
		},
	}
	h1, err := server.Start(counterBehavior(), opts)
	require.NoError(t, err)
	require.NoError(t, h1.Cast(counterCast{delta: 10}))
	require.Eventually(t, func() bool {
		v, err := h1.Call(context.Background(), counterCall{})
		return err == nil && v == 10
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, h1.Checkpoint())
	require.NoError(t, h1.Stop(server.Normal()))
	<-h1.Done()

	h2, err := server.Start(counterBehavior(), opts)
	require.NoError(t, err)
	defer h2.Stop(server.Normal())

	v, err := h2.Call(context.Background(), counterCall{})
	require.NoError(t, err)
	require.Equal(t, 10, v)
}

func TestServer_ClearPersistedStateRemovesSnapshot(t *testing.T) {
	adapter := newMemAdapter()
	opts := server.Options[int]{
		Persistence: &persistence.Options[int]{
			Adapter:        adapter,
			Key:            "counter-b",
			RestoreOnStart: true,
		},
	}
	h, err := server.Start(counterBehavior(), opts)
	require.NoError(t, err)
	require.NoError(t, h.Cast(counterCast{delta: 4}))
	require.Eventually(t, func() bool {
		v, err := h.Call(context.Background(), counterCall{})
		return err == nil && v == 4
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, h.Checkpoint())
	require.NoError(t, h.ClearPersistedState())
	require.NoError(t, h.Stop(server.Normal()))
	<-h.Done()

	ok, err := adapter.Exists(context.Background(), "counter-b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServer_CheckpointFailsWhenPersistenceDisabled(t *testing.T) {
	h, err := server.Start(counterBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer h.Stop(server.Normal())

	require.ErrorIs(t, h.Checkpoint(), server.ErrPersistenceDisabled)
	require.ErrorIs(t, h.ClearPersistedState(), server.ErrPersistenceDisabled)
}
