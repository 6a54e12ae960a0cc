package server

import (
	"context"
	"errors"
	"time"

	"github.com/kodflow/actorcore/persistence"
)

// backgroundCtx is used for persistence operations issued from inside the
// worker goroutine or from ClearPersistedState, where there is no
// caller-supplied context to thread through.
var backgroundCtx = context.Background()

// Start spawns a new server: it registers the handle under Options.Name,
// runs behavior.Init bounded by Options.InitTimeout, optionally restores
// persisted state, then starts the worker goroutine that owns state for
// the rest of the server's life. It returns once the server is accepting
// Call/Cast, or an error if registration or Init failed.
func Start[S, C, A, R any](behavior Behavior[S, C, A, R], opts Options[S]) (*ServerHandle[S, C, A, R], error) {
	h := &ServerHandle[S, C, A, R]{
		id:              nextID(),
		name:            opts.Name,
		mbox:            newMailbox[C, A, R](),
		done:            make(chan struct{}),
		status:          StatusInitializing,
		shutdownTimeout: opts.shutdownTimeout(),
		logger:          opts.Logger,
		timers:          make(map[TimerToken]*time.Timer),
	}

	if opts.Persistence != nil {
		h.persist = persistence.New(*opts.Persistence)
	}

	reg := opts.registryOrDefault()
	if opts.Name != "" {
		if err := reg.Register(opts.Name, h); err != nil {
			close(h.done)
			return nil, err
		}
	}

	initCtx, cancel := context.WithTimeout(context.Background(), opts.initTimeout())
	state, err := behavior.Init(initCtx)
	cancel()
	if errors.Is(initCtx.Err(), context.DeadlineExceeded) {
		err = errInitTimeout(opts.initTimeout())
	}
	if err != nil {
		close(h.done)
		return nil, &InitializationError{ServerID: h.id, Cause: err}
	}

	if h.persist != nil && h.persist.RestoreOnStart() {
		restoreCtx, rcancel := context.WithTimeout(context.Background(), opts.initTimeout())
		restored, meta, ok, rerr := h.persist.Restore(restoreCtx)
		rcancel()
		if rerr != nil {
			h.logf("server %s: state restore failed: %v", h.id, rerr)
		} else if ok {
			if behavior.OnStateRestore != nil {
				state = behavior.OnStateRestore(restored, meta)
			} else {
				state = restored
			}
		}
	}

	h.setStatus(StatusRunning)
	h.mu.Lock()
	h.stats.StartTime = time.Now()
	h.mu.Unlock()
	publishLifecycleEvent(EventStarted, h.id, h.name, StopReason{})

	go h.run(behavior, state)

	return h, nil
}

// run is the server's single worker goroutine: one envelope is processed
// to completion before the next is dequeued, so no two handler
// invocations for the same server ever race (spec §3/§5 invariant).
func (h *ServerHandle[S, C, A, R]) run(behavior Behavior[S, C, A, R], state S) {
	var tickerStop chan struct{}
	if h.persist != nil {
		if d := h.persist.SnapshotInterval(); d > 0 {
			tickerStop = make(chan struct{})
			go h.runSnapshotTicker(d, tickerStop)
		}
	}

	finalReason := Normal()

	for {
		e, ok := h.mbox.pop()
		if !ok {
			break
		}

		switch e.kind {
		case envCall:
			newState, crashed := h.handleCallEnvelope(behavior, state, e)
			if crashed {
				if tickerStop != nil {
					close(tickerStop)
				}
				return
			}
			state = newState

		case envCast:
			newState, err := behavior.HandleCast(context.Background(), e.castMsg, state)
			if err != nil {
				if tickerStop != nil {
					close(tickerStop)
				}
				h.crash(behavior, state, err)
				return
			}
			state = newState
			h.bumpStats()
			h.maybePersist(behavior, state, false)

		case envStop:
			finalReason = e.stopReason
			if tickerStop != nil {
				close(tickerStop)
			}
			h.shutdown(behavior, state, finalReason)
			return

		case envInternal:
			h.handleInternalEnvelope(e, state)
		}
	}

	if tickerStop != nil {
		close(tickerStop)
	}
	h.shutdown(behavior, state, finalReason)
}

// handleCallEnvelope runs HandleCall and replies. It always returns
// crashed=false: a HandleCall error is replied to the caller, and an unset
// HandleCall replies an error, with the server left running either way.
func (h *ServerHandle[S, C, A, R]) handleCallEnvelope(behavior Behavior[S, C, A, R], state S, e envelope[C, A, R]) (S, bool) {
	if behavior.HandleCall == nil {
		h.replyError(e, errors.New("server: no HandleCall handler configured"))
		h.bumpStats()
		return state, false
	}

	ctx, cancel := context.WithDeadline(context.Background(), e.deadline)
	newState, reply, err := behavior.HandleCall(ctx, e.callMsg, state)
	cancel()
	h.bumpStats()

	if err != nil {
		// Call errors propagate to the caller; the server keeps running
		// with its pre-call state (spec §7: call errors are normal control
		// flow, not a crash).
		h.replyError(e, err)
		return state, false
	}

	select {
	case e.replyCh <- callReply[R]{value: reply}:
	default:
	}
	h.maybePersist(behavior, newState, false)
	return newState, false
}

func (h *ServerHandle[S, C, A, R]) replyError(e envelope[C, A, R], err error) {
	if e.replyCh == nil {
		return
	}
	select {
	case e.replyCh <- callReply[R]{err: err}:
	default:
	}
}

// handleInternalEnvelope services the engine's own signals: a periodic
// snapshot tick forces an immediate Manager.Checkpoint, as does an
// explicit Checkpoint call, which also reports the result back to the
// waiting caller.
func (h *ServerHandle[S, C, A, R]) handleInternalEnvelope(e envelope[C, A, R], state S) {
	if h.persist == nil {
		if e.checkpointDone != nil {
			e.checkpointDone <- ErrPersistenceDisabled
		}
		return
	}
	if e.checkpointDone != nil {
		err := h.persist.Checkpoint(backgroundCtx, state)
		e.checkpointDone <- err
		return
	}
	if err := h.persist.Checkpoint(backgroundCtx, state); err != nil {
		h.logf("server %s: periodic snapshot failed: %v", h.id, err)
	}
}

// maybePersist runs Behavior.BeforePersist (if set) and forwards the
// result to the persistence manager. force selects Checkpoint (immediate)
// over Save (debounced); ordinary transitions use the debounced path.
func (h *ServerHandle[S, C, A, R]) maybePersist(behavior Behavior[S, C, A, R], state S, force bool) {
	if h.persist == nil {
		return
	}
	persisted := state
	if behavior.BeforePersist != nil {
		var ok bool
		persisted, ok = behavior.BeforePersist(state)
		if !ok {
			return
		}
	}
	var err error
	if force {
		err = h.persist.Checkpoint(backgroundCtx, persisted)
	} else {
		err = h.persist.Save(backgroundCtx, persisted)
	}
	if err != nil {
		h.logf("server %s: save failed: %v", h.id, err)
	}
}

func (h *ServerHandle[S, C, A, R]) runSnapshotTicker(d time.Duration, stop chan struct{}) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			h.mbox.push(envelope[C, A, R]{kind: envInternal, internalKind: internalSnapshot})
		case <-stop:
			return
		}
	}
}

// shutdown runs the orderly-stop path: a final checkpoint (if
// PersistOnShutdown), Terminate (bounded by shutdownTimeout), persistence
// cleanup, draining any envelopes left in the mailbox, and publishing
// EventTerminated.
func (h *ServerHandle[S, C, A, R]) shutdown(behavior Behavior[S, C, A, R], state S, reason StopReason) {
	h.setStatus(StatusStopping)
	if h.persist != nil && h.persist.PersistOnShutdown() {
		if err := h.persist.Checkpoint(backgroundCtx, state); err != nil {
			h.logf("server %s: final checkpoint failed: %v", h.id, err)
		}
	}
	h.runTerminate(behavior, reason, state)

	if h.persist != nil {
		if h.persist.CleanupOnTerminate() {
			if err := h.persist.Delete(backgroundCtx); err != nil {
				h.logf("server %s: cleanup delete failed: %v", h.id, err)
			}
		}
		if err := h.persist.Close(); err != nil {
			h.logf("server %s: persistence adapter close failed: %v", h.id, err)
		}
	}

	h.finish(reason, EventTerminated)
}

// crash runs the abnormal-exit path: Terminate still runs best-effort,
// but the published event is EventCrashed and the reason carries the
// triggering error, which is what a linked supervisor inspects to decide
// whether and how to restart this child.
func (h *ServerHandle[S, C, A, R]) crash(behavior Behavior[S, C, A, R], state S, cause error) {
	reason := Error(cause)
	h.setStatus(StatusStopping)
	h.runTerminate(behavior, reason, state)

	if h.persist != nil {
		if h.persist.PersistOnShutdown() {
			if err := h.persist.Checkpoint(backgroundCtx, state); err != nil {
				h.logf("server %s: post-crash checkpoint failed: %v", h.id, err)
			}
		}
		if err := h.persist.Close(); err != nil {
			h.logf("server %s: persistence adapter close failed: %v", h.id, err)
		}
	}

	h.finish(reason, EventCrashed)
}

func (h *ServerHandle[S, C, A, R]) runTerminate(behavior Behavior[S, C, A, R], reason StopReason, state S) {
	if behavior.Terminate == nil {
		return
	}
	termDone := make(chan error, 1)
	go func() {
		termDone <- behavior.Terminate(reason, state)
	}()
	select {
	case err := <-termDone:
		if err != nil {
			h.logf("server %s: terminate returned error: %v", h.id, err)
		}
	case <-time.After(h.shutdownTimeout):
		h.logf("server %s: terminate exceeded shutdown timeout", h.id)
	}
}

// finish drains whatever is left in the mailbox, closes it, flips status
// to Stopped, notifies a linked supervisor, and closes Done. It is the
// common tail of both shutdown and crash.
func (h *ServerHandle[S, C, A, R]) finish(reason StopReason, kind EventKind) {
	h.drainPending()
	h.mbox.close()
	h.setStatus(StatusStopped)
	h.notifyExit(reason)
	close(h.done)
	publishLifecycleEvent(kind, h.id, h.name, reason)
}

// drainPending fails every Call left in the mailbox with
// ServerNotRunningError, drops Casts, and fails any pending explicit
// Checkpoint waiters, per the stop flush policy (spec §4.1).
func (h *ServerHandle[S, C, A, R]) drainPending() {
	for _, e := range h.mbox.drain() {
		switch e.kind {
		case envCall:
			h.replyError(e, &ServerNotRunningError{ServerID: h.id})
		case envInternal:
			if e.checkpointDone != nil {
				e.checkpointDone <- &ServerNotRunningError{ServerID: h.id}
			}
		}
	}
}

func (h *ServerHandle[S, C, A, R]) bumpStats() {
	h.mu.Lock()
	h.stats.MessageCount++
	h.stats.LastMessageTime = time.Now()
	h.mu.Unlock()
}
