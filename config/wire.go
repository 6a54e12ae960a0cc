package config

import (
	"fmt"

	"github.com/kodflow/actorcore/supervisor"
)

// ErrMissingStartFunc reports that a child declared in configuration has
// no corresponding entry in the starters map passed to ToSupervisorOptions.
var ErrMissingStartFunc = fmt.Errorf("config: missing start function for declared child")

// ToSupervisorOptions merges this configuration's declared children with
// the caller's actual child constructors, keyed by ChildSpecConfig.ID,
// producing supervisor.Options ready for supervisor.Start. A supervision
// tree's behavior can't be expressed in YAML, so every declared child ID
// must have a matching entry in starters.
func (c *Config) ToSupervisorOptions(name string, starters map[string]func() (supervisor.ChildHandle, error)) (supervisor.Options, error) {
	children := make([]supervisor.ChildSpec, 0, len(c.Supervisor.Children))
	for _, decl := range c.Supervisor.Children {
		start, ok := starters[decl.ID]
		if !ok {
			return supervisor.Options{}, fmt.Errorf("%w: %s", ErrMissingStartFunc, decl.ID)
		}
		children = append(children, supervisor.ChildSpec{
			ID:              decl.ID,
			Start:           start,
			Restart:         decl.Restart,
			ShutdownTimeout: decl.ShutdownTimeout,
			Significant:     decl.Significant,
		})
	}

	return supervisor.Options{
		Name:             name,
		Strategy:         c.Supervisor.Strategy,
		Children:         children,
		RestartIntensity: c.Supervisor.RestartIntensity,
		AutoShutdown:     c.Supervisor.AutoShutdown,
		ShutdownTimeout:  c.Supervisor.ShutdownTimeout,
	}, nil
}
