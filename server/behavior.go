package server

import (
	"context"

	"github.com/kodflow/actorcore/persistence"
)

// Behavior bundles the handler set a server is started with: S is the
// opaque state type the engine owns and mutates only from the worker
// goroutine, C is the request type accepted by Call, A is the message type
// accepted by Cast, and R is the reply type returned by Call. These four
// type parameters are the engine's phantom tags (spec §9): they exist
// purely to keep Call/Cast/reply types checked at compile time and carry
// no runtime representation beyond the closures below.
type Behavior[S, C, A, R any] struct {
	// Init builds the server's initial state. It may block; it is bounded
	// by Options.InitTimeout.
	Init func(ctx context.Context) (S, error)

	// HandleCall answers a synchronous request. A returned error is
	// propagated to the caller; the server is NOT crashed and its state is
	// left unchanged (spec §7: call errors are normal control flow).
	HandleCall func(ctx context.Context, msg C, state S) (S, R, error)

	// HandleCast handles a one-way message. A returned error crashes the
	// server: status becomes Stopped with ReasonError, Terminate (if set)
	// runs best-effort, and any linked supervisor is notified.
	HandleCast func(ctx context.Context, msg A, state S) (S, error)

	// Terminate runs exactly once, bounded by the configured shutdown
	// timeout, whenever the server stops for any reason. It is optional;
	// a nil Terminate is simply skipped. Errors are reported via the
	// engine's Options.Logger but never block shutdown.
	Terminate func(reason StopReason, state S) error

	// OnStateRestore transforms a state loaded from persistence before it
	// replaces Init's return value. Optional; when nil the restored state
	// is used as-is.
	OnStateRestore func(restored S, meta persistence.Metadata) S

	// BeforePersist runs after every successful state transition. When
	// non-nil and it returns ok=false, persistence is skipped for that
	// transition; otherwise the returned value is what gets persisted
	// (which may differ from state, e.g. to redact fields before they
	// hit storage).
	BeforePersist func(state S) (persisted S, ok bool)
}
