package supervisor

import (
	"fmt"
	"time"

	"github.com/kodflow/actorcore/server"
)

// childRecord is one entry of the supervisor's child table. It is always
// mutated from the supervisor's own worker goroutine, never concurrently.
type childRecord struct {
	spec         ChildSpec
	handle       ChildHandle
	startOrder   int
	restartCount int
	running      bool

	// suppressNextExit marks an exit notification the supervisor itself
	// triggered as part of a controlled stop-for-restart (a group cascade
	// or an explicit RestartChild): the
	// async castChildExited that follows is expected and must not be run
	// back through the generic restart-eligibility logic a second time.
	suppressNextExit bool
}

// supState is the supervisor's owned state: the child table plus
// everything needed to apply a restart strategy.
type supState struct {
	strategy             Strategy
	template             ChildTemplate
	templateRestart      RestartPolicy
	templateSignificant  bool

	order []*childRecord
	byID  map[string]*childRecord

	intensity        RestartIntensity
	restartLog       []time.Time
	autoShutdown     AutoShutdown
	significantAlive int
	nextSimpleID     int
}

func snapshot(rec *childRecord) ChildInfo {
	return ChildInfo{
		ID:           rec.spec.ID,
		Running:      rec.running,
		RestartCount: rec.restartCount,
		StartOrder:   rec.startOrder,
		Significant:  rec.spec.Significant,
		Restart:      rec.spec.Restart,
	}
}

func snapshotAll(state supState) []ChildInfo {
	out := make([]ChildInfo, 0, len(state.order))
	for _, rec := range state.order {
		out = append(out, snapshot(rec))
	}
	return out
}

func restartEligible(policy RestartPolicy, reason StopReason) bool {
	switch policy {
	case Permanent:
		return true
	case Transient:
		return reason.Kind == server.ReasonError
	default:
		return false
	}
}

func shutdownTimeoutFor(rec *childRecord) time.Duration {
	if rec.spec.ShutdownTimeout > 0 {
		return rec.spec.ShutdownTimeout
	}
	return server.DefaultShutdownTimeout
}

func waitChildDone(rec *childRecord, timeout time.Duration) {
	select {
	case <-rec.handle.Done():
	case <-time.After(timeout):
	}
}

// wireExitListener installs the callback that turns a child's termination
// into a castChildExited message on the supervisor's own mailbox. h.ready
// guards against the child exiting before Start has finished assigning
// h.inner (possible if a child stops while the supervisor's own Init is
// still starting its siblings).
func wireExitListener(h *Handle, rec *childRecord) {
	id := rec.spec.ID
	rec.handle.SetExitListener(func(reason StopReason) {
		<-h.ready
		if h.inner == nil {
			return
		}
		h.inner.Cast(cast{kind: castChildExited, childID: id, reason: reason})
	})
}

func restartRecord(h *Handle, rec *childRecord) error {
	handle, err := rec.spec.Start()
	if err != nil {
		return err
	}
	rec.handle = handle
	rec.running = true
	rec.restartCount++
	wireExitListener(h, rec)
	return nil
}

// recordRestart appends a restart-log entry, prunes anything older than
// the configured window, and terminates the supervisor with
// MaxRestartsExceededError if the intensity limit is now exceeded. It
// returns false when the supervisor has been told to stop, so callers
// know not to proceed with the restart they were about to perform.
func recordRestart(h *Handle, state *supState) bool {
	now := time.Now()
	state.restartLog = append(state.restartLog, now)

	cutoff := now.Add(-state.intensity.Within)
	kept := state.restartLog[:0]
	for _, t := range state.restartLog {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	state.restartLog = kept

	if len(state.restartLog) > state.intensity.MaxRestarts {
		h.inner.Stop(Error(&MaxRestartsExceededError{
			SupervisorID: h.inner.ID(),
			MaxRestarts:  state.intensity.MaxRestarts,
			Within:       state.intensity.Within,
		}))
		return false
	}
	return true
}

func restartOne(h *Handle, state *supState, rec *childRecord) {
	if !recordRestart(h, state) {
		return
	}
	if err := restartRecord(h, rec); err != nil {
		h.inner.Stop(Error(fmt.Errorf("restarting child %q: %w", rec.spec.ID, err)))
	}
}

// restartGroup stops every still-running member of group (besides the one
// that already exited on its own, triggering this cascade) and restarts
// the group in ascending start order. Used by OneForAll and RestForOne.
//
// A sibling's own eligibility is checked against reason, the cascade's
// triggering exit reason, not the synthetic Shutdown() used to stop it
// here: Temporary siblings are never restarted, and Transient siblings
// are restarted only if the cascade itself was triggered by an abnormal
// exit. A sibling left down this way that is significant still feeds
// AutoShutdown, matching the single-child path in handleCast.
func restartGroup(h *Handle, state *supState, group []*childRecord, reason StopReason) {
	if !recordRestart(h, state) {
		return
	}

	for i := len(group) - 1; i >= 0; i-- {
		rec := group[i]
		if rec.running {
			rec.suppressNextExit = true
			rec.handle.Stop(Shutdown())
			waitChildDone(rec, shutdownTimeoutFor(rec))
			rec.running = false
		}
	}

	for _, rec := range group {
		if !restartEligible(rec.spec.Restart, reason) {
			if rec.spec.Significant {
				state.significantAlive--
				applyAutoShutdown(h, state)
			}
			continue
		}
		if err := restartRecord(h, rec); err != nil {
			h.inner.Stop(Error(fmt.Errorf("restarting child %q: %w", rec.spec.ID, err)))
			return
		}
	}
}

func applyAutoShutdown(h *Handle, state *supState) {
	switch state.autoShutdown {
	case AnySignificant:
		h.inner.Stop(Normal())
	case AllSignificant:
		if state.significantAlive <= 0 {
			h.inner.Stop(Normal())
		}
	}
}

func stopAllReverse(state supState, reason StopReason) {
	for i := len(state.order) - 1; i >= 0; i-- {
		rec := state.order[i]
		if !rec.running {
			continue
		}
		rec.handle.Stop(reason)
		waitChildDone(rec, shutdownTimeoutFor(rec))
	}
}

func stopStartedReverse(order []*childRecord, reason StopReason) {
	for i := len(order) - 1; i >= 0; i-- {
		rec := order[i]
		rec.handle.Stop(reason)
		waitChildDone(rec, shutdownTimeoutFor(rec))
	}
}
