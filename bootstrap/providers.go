package bootstrap

import (
	"fmt"

	"github.com/kodflow/actorcore/config"
	"github.com/kodflow/actorcore/registry"
	"github.com/kodflow/actorcore/storage/boltadapter"
	"github.com/kodflow/actorcore/supervisor"
	"github.com/kodflow/actorcore/timer"
)

// ProvideRegistry returns p.Registry when the caller supplied one (needed
// when a Starters closure registers its own handle before the Supervisor
// exists), otherwise builds a fresh Registry.
func ProvideRegistry(p Params) *registry.Registry {
	if p.Registry != nil {
		return p.Registry
	}
	return registry.New()
}

// ProvideStorage returns p.Storage when the caller already opened one
// (needed when a Starters closure persists through the same bbolt file:
// a process can't open one bbolt file twice), otherwise opens StoragePath
// fresh.
func ProvideStorage(p Params) (*boltadapter.Adapter, error) {
	if p.Storage != nil {
		return p.Storage, nil
	}
	return boltadapter.Open(p.StoragePath, 0)
}

// ProvideSupervisor merges the loaded configuration's declared children
// with p.Starters and starts the resulting supervision tree.
func ProvideSupervisor(cfg *config.Config, p Params) (*supervisor.Handle, error) {
	opts, err := cfg.ToSupervisorOptions("root-supervisor", p.Starters)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building supervisor options: %w", err)
	}
	return supervisor.Start(opts)
}

// ProvideTimer starts the Timer Service against the shared storage and
// registry, namespaced by the configuration's timer key prefix.
func ProvideTimer(cfg *config.Config, reg *registry.Registry, storage *boltadapter.Adapter) (*timer.Handle, error) {
	return timer.Start(timer.Options{
		Name:         "timer-service",
		Adapter:      storage,
		KeyPrefix:    cfg.Timer.KeyPrefix,
		Registry:     reg,
		TickInterval: cfg.Timer.TickInterval,
	})
}
