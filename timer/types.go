// Package timer implements the Timer Service (spec §4.4): a server, just
// like any other started via the server package, that owns a durable set
// of scheduled casts. Entries survive a process restart through a
// persistence.StorageAdapter; a periodic tick scans for due entries and
// delivers them to their target.
package timer

import (
	"encoding/json"
	"time"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/registry"
	"github.com/kodflow/actorcore/server"
)

// DefaultTickInterval matches spec §4.4's default 1000ms scan period.
const DefaultTickInterval = time.Second

// Dispatcher is the minimal surface a timer target must expose: the
// registry.Handle methods it is registered with, plus a way to
// deliver an arbitrary cast payload carried as raw JSON, without the
// Timer Service needing to know the target's Cast message type at
// compile time. Decoding happens at the target's own Cast type (A), not
// the Timer Service's, which is what lets a persisted entry round-trip
// through storage and still deliver the right concrete type after a
// restart. Adapt bridges a concretely typed *server.ServerHandle into
// this interface.
type Dispatcher interface {
	registry.Handle
	CastJSON(payload []byte) error
}

// dispatchHandle adapts one server.ServerHandle instantiation to both
// registry.Handle (so it can be registered under a name) and Dispatcher.
type dispatchHandle[S, C, A, R any] struct {
	h *server.ServerHandle[S, C, A, R]
}

// Adapt wraps h so it can be registered under a name (via registry) and
// targeted by the Timer Service's scheduled casts. Call Adapt once per
// handle at registration time:
//
//	registry.Default.Register("worker-1", timer.Adapt(handle))
func Adapt[S, C, A, R any](h *server.ServerHandle[S, C, A, R]) Dispatcher {
	return dispatchHandle[S, C, A, R]{h: h}
}

func (d dispatchHandle[S, C, A, R]) ID() string            { return d.h.ID() }
func (d dispatchHandle[S, C, A, R]) Done() <-chan struct{} { return d.h.Done() }

// CastJSON decodes payload as A and forwards it as an ordinary Cast.
func (d dispatchHandle[S, C, A, R]) CastJSON(payload []byte) error {
	var a A
	if err := json.Unmarshal(payload, &a); err != nil {
		return &PayloadDecodeError{TargetID: d.h.ID(), Cause: err}
	}
	return d.h.Cast(a)
}

// Entry is a read-only snapshot of one scheduled timer, returned by
// Get/GetAll. Message is decoded into a generic representation (as
// encoding/json would unmarshal it into an any) for inspection; it is
// not what gets redelivered, which decodes fresh from the stored JSON
// into the target's own Cast type.
type Entry struct {
	ID         string
	TargetName string
	Message    any
	FireAt     time.Time
	RepeatMs   int64
}

// ScheduleOptions configures a single Schedule call.
type ScheduleOptions struct {
	// RepeatMs, when non-zero, reschedules the entry for now+RepeatMs
	// after every firing instead of deleting it.
	RepeatMs int64
}

// Options configures Start.
type Options struct {
	// Name, if non-empty, registers the Timer Service itself under this
	// name.
	Name string

	// Adapter is the storage backend entries are persisted to. Required.
	Adapter persistence.StorageAdapter
	// KeyPrefix namespaces this service's entries within Adapter, so one
	// adapter instance can back multiple independent Timer Services.
	KeyPrefix string

	// Registry resolves a scheduled entry's TargetName to a live
	// Dispatcher at tick time. Defaults to registry.Default.
	Registry *registry.Registry

	// TickInterval is how often due entries are scanned. Defaults to
	// DefaultTickInterval.
	TickInterval time.Duration

	// Logger receives best-effort diagnostics for delivery failures,
	// matching spec §4.4's "best-effort; failures are logged, not
	// retried".
	Logger server.Logger
}

func (o Options) tickInterval() time.Duration {
	if o.TickInterval <= 0 {
		return DefaultTickInterval
	}
	return o.TickInterval
}

func (o Options) registryOrDefault() *registry.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return registry.Default
}

func (o Options) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
