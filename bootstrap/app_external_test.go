package bootstrap_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodflow/actorcore/bootstrap"
	"github.com/kodflow/actorcore/server"
	"github.com/kodflow/actorcore/supervisor"
)

const minimalTree string = `
version: "1"
supervisor:
  strategy: one_for_one
  children:
    - id: worker-1
timer:
  key_prefix: "demo/"
  tick_interval: 50ms
`

// fakeChild is the smallest possible supervisor.ChildHandle, enough to
// exercise InitializeApp's wiring without starting a real server.
type fakeChild struct {
	mu     sync.Mutex
	done   chan struct{}
	closed bool
	onExit func(reason server.StopReason)
}

func newFakeChild() *fakeChild {
	return &fakeChild{done: make(chan struct{})}
}

func (c *fakeChild) ID() string            { return "worker-1" }
func (c *fakeChild) Done() <-chan struct{} { return c.done }

func (c *fakeChild) Stop(reason server.StopReason) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeChild) SetExitListener(fn func(reason server.StopReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExit = fn
}

func TestInitializeApp_WiresEveryComponent(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tree.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(minimalTree), 0o600))

	params := bootstrap.Params{
		ConfigPath:  configPath,
		StoragePath: filepath.Join(dir, "state.db"),
		Starters: map[string]func() (supervisor.ChildHandle, error){
			"worker-1": func() (supervisor.ChildHandle, error) { return newFakeChild(), nil },
		},
	}

	app, err := bootstrap.InitializeApp(params)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, app.Registry)
	require.NotNil(t, app.Storage)
	require.NotNil(t, app.Supervisor)
	require.NotNil(t, app.Timer)

	app.Cleanup()
}
