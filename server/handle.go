package server

import (
	"sync"
	"time"

	"github.com/kodflow/actorcore/persistence"
)

// ServerHandle is the opaque capability returned by Start. It addresses a
// running server; it does not own it (spec §3). The four type parameters
// are compile-time-only phantom tags (spec §9): S is the owned state
// type, C the Call request type, A the Cast message type, R the Call
// reply type.
type ServerHandle[S, C, A, R any] struct {
	id   string
	name string

	mbox *mailbox[C, A, R]
	done chan struct{}

	mu     sync.RWMutex
	status Status
	stats  Stats

	persist *persistence.Manager[S]

	shutdownTimeout time.Duration
	logger          Logger

	timersMu    sync.Mutex
	timers      map[TimerToken]*time.Timer
	nextTimerID uint64

	exitMu   sync.Mutex
	onExit   func(reason StopReason)
}

// ID returns the handle's process-wide unique identifier.
func (h *ServerHandle[S, C, A, R]) ID() string { return h.id }

// Name returns the name the server was started with, or "" if it was
// started anonymously.
func (h *ServerHandle[S, C, A, R]) Name() string { return h.name }

// Done returns a channel closed once the server has fully terminated.
// Registry watches this to auto-unregister; supervisors watch it (via
// SetExitListener, which fires before Done closes) to react to child
// exits.
func (h *ServerHandle[S, C, A, R]) Done() <-chan struct{} { return h.done }

// IsRunning is a non-blocking status probe.
func (h *ServerHandle[S, C, A, R]) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status == StatusRunning
}

// Status returns the full lifecycle status, for callers that need to
// distinguish Initializing/Stopping from a flat running/not-running bit.
func (h *ServerHandle[S, C, A, R]) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Stats returns a point-in-time snapshot of the server's observable
// counters.
func (h *ServerHandle[S, C, A, R]) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.stats
	s.QueueSize = h.mbox.len()
	return s
}

// SetExitListener installs fn to be invoked, exactly once, with the
// server's final StopReason when it terminates (crash or stop), just
// before Done closes. It exists so a supervisor can react to a child's
// exit without the child needing to know about supervisors (spec §3's
// "weak back-reference"). Calling it more than once replaces the prior
// listener; it is meant to be called at most once, by the component that
// started the server.
func (h *ServerHandle[S, C, A, R]) SetExitListener(fn func(reason StopReason)) {
	h.exitMu.Lock()
	h.onExit = fn
	h.exitMu.Unlock()
}

func (h *ServerHandle[S, C, A, R]) notifyExit(reason StopReason) {
	h.exitMu.Lock()
	fn := h.onExit
	h.exitMu.Unlock()
	if fn != nil {
		fn(reason)
	}
}

func (h *ServerHandle[S, C, A, R]) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *ServerHandle[S, C, A, R]) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

// Checkpoint forces an immediate persisted snapshot of state. It fails
// with ErrPersistenceDisabled if the server was started without
// Options.Persistence. Because state is only ever safely read from the
// worker goroutine, Checkpoint is itself issued as a Call-like request
// to the worker (an internal snapshot envelope) so the written value is
// always the latest processed state.
func (h *ServerHandle[S, C, A, R]) Checkpoint() error {
	if h.persist == nil {
		return ErrPersistenceDisabled
	}
	if !h.IsRunning() {
		return &ServerNotRunningError{ServerID: h.id}
	}
	done := make(chan error, 1)
	ok := h.mbox.push(envelope[C, A, R]{
		kind:           envInternal,
		internalKind:   internalSnapshot,
		checkpointDone: done,
	})
	if !ok {
		return &ServerNotRunningError{ServerID: h.id}
	}
	return <-done
}

// GetLastCheckpointMeta returns the metadata of the most recent persisted
// snapshot, and whether any snapshot has happened yet. It returns
// ok=false with no error if persistence is disabled.
func (h *ServerHandle[S, C, A, R]) GetLastCheckpointMeta() (persistence.Metadata, bool) {
	if h.persist == nil {
		return persistence.Metadata{}, false
	}
	return h.persist.LastCheckpointMeta()
}

// ClearPersistedState deletes this server's persisted snapshot. It fails
// with ErrPersistenceDisabled if the server was started without
// Options.Persistence.
func (h *ServerHandle[S, C, A, R]) ClearPersistedState() error {
	if h.persist == nil {
		return ErrPersistenceDisabled
	}
	return h.persist.Delete(backgroundCtx)
}
