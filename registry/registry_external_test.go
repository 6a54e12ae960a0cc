package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kodflow/actorcore/registry"
)

// fakeHandle is a minimal registry.Handle for tests that don't need a real
// running server.
type fakeHandle struct {
	id   string
	done chan struct{}
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, done: make(chan struct{})}
}

func (f *fakeHandle) ID() string             { return f.id }
func (f *fakeHandle) Done() <-chan struct{}  { return f.done }
func (f *fakeHandle) terminate()             { close(f.done) }

func TestRegistry_RegisterLookup(t *testing.T) {
	r := registry.New()
	h := newFakeHandle("p1")

	require.NoError(t, r.Register("worker", h))

	got, err := r.Lookup("worker")
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.True(t, r.IsRegistered("worker"))
	require.Equal(t, 1, r.Count())
}

func TestRegistry_DuplicateNameFails(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("worker", newFakeHandle("p1")))

	err := r.Register("worker", newFakeHandle("p2"))
	require.ErrorIs(t, err, registry.ErrAlreadyRegistered)
}

func TestRegistry_LookupMissingFails(t *testing.T) {
	r := registry.New()
	_, err := r.Lookup("ghost")
	require.ErrorIs(t, err, registry.ErrNotRegistered)

	h, ok := r.Whereis("ghost")
	require.False(t, ok)
	require.Nil(t, h)
}

func TestRegistry_AutoUnregistersOnTermination(t *testing.T) {
	r := registry.New()
	h := newFakeHandle("p1")
	require.NoError(t, r.Register("worker", h))

	h.terminate()

	require.Eventually(t, func() bool {
		return !r.IsRegistered("worker")
	}, time.Second, time.Millisecond)

	_, ok := r.Whereis("worker")
	require.False(t, ok)
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("worker", newFakeHandle("p1")))

	r.Unregister("worker")
	require.False(t, r.IsRegistered("worker"))

	// second call must not panic or error
	r.Unregister("worker")
	require.Equal(t, 0, r.Count())
}

func TestRegistry_GetNamesSnapshot(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("a", newFakeHandle("1")))
	require.NoError(t, r.Register("b", newFakeHandle("2")))

	names := r.GetNames()
	require.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestRegistry_ReregisterAfterUnregister(t *testing.T) {
	r := registry.New()
	h1 := newFakeHandle("p1")
	require.NoError(t, r.Register("worker", h1))
	r.Unregister("worker")

	h2 := newFakeHandle("p2")
	require.NoError(t, r.Register("worker", h2))

	got, err := r.Lookup("worker")
	require.NoError(t, err)
	require.Equal(t, h2, got)

	// the stale watcher for h1 must not clobber h2's registration
	h1.terminate()
	time.Sleep(20 * time.Millisecond)
	require.True(t, r.IsRegistered("worker"))
}
