// Package bootstrap wires the Registry, Persistence Manager, Supervisor,
// and Timer Service into one runnable App for the demo binary, following
// spec §2's dependency order (Registry → Server Engine → Persistence
// Manager → Supervisor Engine → Timer Service). It isolates dependency
// construction from cmd/actorcored/main.go, matching the teacher's own
// bootstrap package's separation of wiring from entry point.
package bootstrap

import (
	"github.com/kodflow/actorcore/config"
	"github.com/kodflow/actorcore/registry"
	"github.com/kodflow/actorcore/server"
	"github.com/kodflow/actorcore/storage/boltadapter"
	"github.com/kodflow/actorcore/supervisor"
	"github.com/kodflow/actorcore/timer"
)

// App holds every top-level dependency this module's demo binary needs,
// assembled by InitializeApp.
type App struct {
	// Registry resolves names to live handles for both the supervisor's
	// children and the Timer Service's delivery targets.
	Registry *registry.Registry
	// Storage backs the Timer Service's persisted entries, and any child
	// server a Starters closure persists through it. The Supervisor
	// itself persists nothing.
	Storage *boltadapter.Adapter
	// Supervisor is the root of the supervised tree.
	Supervisor *supervisor.Handle
	// Timer owns every durable scheduled cast for this tree.
	Timer *timer.Handle
	// Cleanup releases every resource App owns, in reverse wiring order.
	Cleanup func()
}

// Params bundles InitializeApp's caller-supplied values: everything that
// cannot be expressed declaratively in a tree.yaml file.
type Params struct {
	// ConfigPath points at a YAML file parseable by config.Loader.
	ConfigPath string
	// StoragePath is where the bbolt-backed StorageAdapter keeps its file.
	StoragePath string
	// Starters supplies the actual child constructors for every child ID
	// the configuration declares (see config.Config.ToSupervisorOptions).
	// A starter that itself registers its handle in Registry needs that
	// registry before the supervisor exists, which is why Registry below
	// is caller-suppliable rather than purely an InitializeApp output.
	Starters map[string]func() (supervisor.ChildHandle, error)
	// Registry, if non-nil, is used instead of a freshly constructed one.
	// Set this when a Starters closure needs to register its own handle
	// under the same Registry the Timer Service resolves targets against.
	Registry *registry.Registry
	// Storage, if non-nil, is used instead of opening StoragePath fresh.
	// Set this when a Starters closure also persists through the same
	// bbolt file; a single process cannot open one bbolt file twice.
	Storage *boltadapter.Adapter
}

func newCleanup(storage *boltadapter.Adapter, sup *supervisor.Handle, tmr *timer.Handle) func() {
	return func() {
		if tmr != nil {
			_ = tmr.Stop(server.Normal())
		}
		if sup != nil {
			_ = sup.Stop(server.Normal())
		}
		if storage != nil {
			_ = storage.Close()
		}
	}
}

func loadConfig(p Params) (*config.Config, error) {
	return config.New().Load(p.ConfigPath)
}
