package server

import (
	"context"
	"time"
)

// Call sends msg and blocks until the server replies, ctx is done, or the
// call's timeout elapses (DefaultCallTimeout unless overridden with
// WithTimeout). A timeout or a not-running server both return typed
// errors; neither crashes the server, and neither guarantees the
// envelope was not already processed (spec §7.1: replies racing a
// timeout are simply dropped).
func (h *ServerHandle[S, C, A, R]) Call(ctx context.Context, msg C, opts ...CallOption) (R, error) {
	var zero R

	cfg := CallOptions{TimeoutMs: DefaultCallTimeout.Milliseconds()}
	for _, o := range opts {
		o(&cfg)
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond

	replyCh := make(chan callReply[R], 1)
	pushed := h.mbox.push(envelope[C, A, R]{
		kind:     envCall,
		callMsg:  msg,
		deadline: time.Now().Add(timeout),
		replyCh:  replyCh,
	})
	if !pushed {
		return zero, &ServerNotRunningError{ServerID: h.id}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-replyCh:
		return r.value, r.err
	case <-timer.C:
		return zero, &CallTimeoutError{ServerID: h.id, TimeoutMs: cfg.TimeoutMs}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cast enqueues msg and returns immediately, without waiting for it to be
// processed. A server that has already stopped silently drops msg: Cast
// is a no-op in that case, not an error.
func (h *ServerHandle[S, C, A, R]) Cast(msg A) error {
	h.mbox.push(envelope[C, A, R]{kind: envCast, castMsg: msg})
	return nil
}

// Stop requests an orderly shutdown with the given reason. It returns
// immediately; the server finishes any envelope already in flight, runs
// Terminate, and closes Done once fully stopped.
func (h *ServerHandle[S, C, A, R]) Stop(reason StopReason) error {
	if !h.mbox.push(envelope[C, A, R]{kind: envStop, stopReason: reason}) {
		return &ServerNotRunningError{ServerID: h.id}
	}
	return nil
}

// SendAfter schedules msg to be delivered via Cast after delay. The
// timer is not durable: a process restart or a crash of this server
// cancels it silently. Use the timer package's Schedule for a delivery
// that survives a crash.
func (h *ServerHandle[S, C, A, R]) SendAfter(msg A, delay time.Duration) (TimerToken, error) {
	h.timersMu.Lock()
	h.nextTimerID++
	token := TimerToken(h.nextTimerID)
	h.timersMu.Unlock()

	t := time.AfterFunc(delay, func() {
		h.timersMu.Lock()
		_, stillPending := h.timers[token]
		if stillPending {
			delete(h.timers, token)
		}
		h.timersMu.Unlock()
		if stillPending {
			_ = h.Cast(msg)
		}
	})

	h.timersMu.Lock()
	h.timers[token] = t
	h.timersMu.Unlock()

	return token, nil
}

// CancelTimer cancels a timer scheduled with SendAfter. It reports false
// if the token is unknown or already fired.
func (h *ServerHandle[S, C, A, R]) CancelTimer(token TimerToken) bool {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()
	t, ok := h.timers[token]
	if !ok {
		return false
	}
	delete(h.timers, token)
	return t.Stop()
}
