package server

import (
	"time"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/registry"
)

// Default timeouts, matching spec §4.1.
const (
	DefaultInitTimeout     = 5 * time.Second
	DefaultCallTimeout     = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Options configures Start. Every field has a documented zero-value
// default; only Persistence needs to be set explicitly to opt in.
type Options[S any] struct {
	// Name, if non-empty, registers the started handle under this name
	// (see Registry). Start fails with an AlreadyRegisteredError-wrapping
	// error if the name is taken.
	Name string
	// Registry is the registry.Registry used to resolve Name. Defaults to
	// registry.Default.
	Registry *registry.Registry

	// InitTimeout bounds Behavior.Init. Defaults to DefaultInitTimeout.
	InitTimeout time.Duration
	// ShutdownTimeout bounds Behavior.Terminate during Stop. Defaults to
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Persistence, when non-nil, wires the server into a
	// persistence.Manager per spec §4.5. Set it to a
	// persistence.Options[S]{...}; Start builds the Manager from it.
	Persistence *persistence.Options[S]

	// Logger receives best-effort diagnostic lines (crash causes,
	// terminate errors, persistence failures). Nil disables logging.
	Logger Logger
}

// Logger is the minimal logging surface the engine needs. *log.Logger
// satisfies it; so does any adapter a caller wants to supply.
type Logger interface {
	Printf(format string, args ...any)
}

// CallOptions configures a single Call.
type CallOptions struct {
	TimeoutMs int64
}

// CallOption mutates CallOptions; WithTimeout is the only one needed so
// far.
type CallOption func(*CallOptions)

// WithTimeout overrides the default call timeout for one Call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *CallOptions) { o.TimeoutMs = d.Milliseconds() }
}

func (o Options[S]) initTimeout() time.Duration {
	if o.InitTimeout <= 0 {
		return DefaultInitTimeout
	}
	return o.InitTimeout
}

func (o Options[S]) shutdownTimeout() time.Duration {
	if o.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return o.ShutdownTimeout
}

func (o Options[S]) registryOrDefault() *registry.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return registry.Default
}
