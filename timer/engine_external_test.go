package timer_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/registry"
	"github.com/kodflow/actorcore/server"
	"github.com/kodflow/actorcore/timer"
)

// memAdapter is a minimal in-memory persistence.StorageAdapter scoped to
// this package's tests.
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

type pingCast struct{ N int }
type pingCall struct{}

func pingBehavior() server.Behavior[int, pingCall, pingCast, int] {
	return server.Behavior[int, pingCall, pingCast, int]{
		Init: func(ctx context.Context) (int, error) { return 0, nil },
		HandleCall: func(ctx context.Context, msg pingCall, state int) (int, int, error) {
			return state, state, nil
		},
		HandleCast: func(ctx context.Context, msg pingCast, state int) (int, error) {
			return state + msg.N, nil
		},
	}
}

func TestTimer_ScheduleDeliversCastAfterDelay(t *testing.T) {
	reg := registry.New()
	worker, err := server.Start(pingBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer worker.Stop(server.Normal())
	require.NoError(t, reg.Register("worker", timer.Adapt(worker)))

	svc, err := timer.Start(timer.Options{
		Adapter:      newMemAdapter(),
		KeyPrefix:    "t1/",
		Registry:     reg,
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer svc.Stop(server.Normal())

	_, err = svc.Schedule(context.Background(), "worker", pingCast{N: 5}, 20*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := worker.Call(context.Background(), pingCall{})
		return err == nil && v == 5
	}, time.Second, 5*time.Millisecond)
}

func TestTimer_CancelPreventsDelivery(t *testing.T) {
	reg := registry.New()
	worker, err := server.Start(pingBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer worker.Stop(server.Normal())
	require.NoError(t, reg.Register("worker", timer.Adapt(worker)))

	svc, err := timer.Start(timer.Options{
		Adapter:      newMemAdapter(),
		KeyPrefix:    "t2/",
		Registry:     reg,
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer svc.Stop(server.Normal())

	id, err := svc.Schedule(context.Background(), "worker", pingCast{N: 1}, 50*time.Millisecond)
	require.NoError(t, err)

	ok, err := svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	v, err := worker.Call(context.Background(), pingCall{})
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestTimer_RepeatingEntryFiresMultipleTimes(t *testing.T) {
	reg := registry.New()
	worker, err := server.Start(pingBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer worker.Stop(server.Normal())
	require.NoError(t, reg.Register("worker", timer.Adapt(worker)))

	svc, err := timer.Start(timer.Options{
		Adapter:      newMemAdapter(),
		KeyPrefix:    "t3/",
		Registry:     reg,
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer svc.Stop(server.Normal())

	_, err = svc.Schedule(context.Background(), "worker", pingCast{N: 1}, 10*time.Millisecond, timer.ScheduleOptions{RepeatMs: 15})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := worker.Call(context.Background(), pingCall{})
		return err == nil && v >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTimer_DurableEntrySurvivesRestart(t *testing.T) {
	reg := registry.New()
	worker, err := server.Start(pingBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer worker.Stop(server.Normal())
	require.NoError(t, reg.Register("worker", timer.Adapt(worker)))

	adapter := newMemAdapter()
	svc1, err := timer.Start(timer.Options{
		Adapter:      adapter,
		KeyPrefix:    "t4/",
		Registry:     reg,
		TickInterval: time.Hour,
	})
	require.NoError(t, err)

	_, err = svc1.Schedule(context.Background(), "worker", pingCast{N: 7}, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, svc1.Stop(server.Normal()))
	<-svc1.Done()

	svc2, err := timer.Start(timer.Options{
		Adapter:      adapter,
		KeyPrefix:    "t4/",
		Registry:     reg,
		TickInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer svc2.Stop(server.Normal())

	require.Eventually(t, func() bool {
		v, err := worker.Call(context.Background(), pingCall{})
		return err == nil && v == 7
	}, time.Second, 5*time.Millisecond)
}

func TestTimer_GetAllReflectsScheduledEntries(t *testing.T) {
	reg := registry.New()
	worker, err := server.Start(pingBehavior(), server.Options[int]{})
	require.NoError(t, err)
	defer worker.Stop(server.Normal())
	require.NoError(t, reg.Register("worker", timer.Adapt(worker)))

	svc, err := timer.Start(timer.Options{
		Adapter:      newMemAdapter(),
		KeyPrefix:    "t5/",
		Registry:     reg,
		TickInterval: time.Hour,
	})
	require.NoError(t, err)
	defer svc.Stop(server.Normal())

	_, err = svc.Schedule(context.Background(), "worker", pingCast{N: 1}, time.Minute)
	require.NoError(t, err)
	_, err = svc.Schedule(context.Background(), "worker", pingCast{N: 2}, time.Minute)
	require.NoError(t, err)

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}
