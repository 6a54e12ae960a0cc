package timer

import (
	"context"
	"time"

	"github.com/kodflow/actorcore/server"
)

// ID returns the Timer Service's own server id.
func (h *Handle) ID() string { return h.inner.ID() }

// Done returns a channel closed once the Timer Service has fully stopped.
func (h *Handle) Done() <-chan struct{} { return h.inner.Done() }

// IsRunning is a non-blocking status probe.
func (h *Handle) IsRunning() bool { return h.inner.IsRunning() }

// Stop halts the tick loop and stops the underlying server. It is safe to
// call more than once.
func (h *Handle) Stop(reason server.StopReason) error {
	h.stopOnce.Do(func() { close(h.stop) })
	return h.inner.Stop(reason)
}

// Schedule persists a new timer that casts message to targetName's
// Dispatcher after delay, repeating every RepeatMs thereafter if set.
func (h *Handle) Schedule(ctx context.Context, targetName string, message any, delay time.Duration, opts ...ScheduleOptions) (string, error) {
	var so ScheduleOptions
	if len(opts) > 0 {
		so = opts[0]
	}
	r, err := h.inner.Call(ctx, call{
		kind:       callSchedule,
		targetName: targetName,
		message:    message,
		delay:      delay,
		repeatMs:   so.RepeatMs,
	})
	if err != nil {
		return "", err
	}
	return r.timerID, nil
}

// Cancel removes timerID from memory and storage. It reports false,
// without error, if timerID is already unknown.
func (h *Handle) Cancel(ctx context.Context, timerID string) (bool, error) {
	r, err := h.inner.Call(ctx, call{kind: callCancel, timerID: timerID})
	if err != nil {
		return false, err
	}
	return r.ok, nil
}

// Get returns a snapshot of one timer, failing with TimerNotFoundError if
// timerID is unknown.
func (h *Handle) Get(ctx context.Context, timerID string) (Entry, error) {
	r, err := h.inner.Call(ctx, call{kind: callGet, timerID: timerID})
	if err != nil {
		return Entry{}, err
	}
	return r.entry, nil
}

// GetAll returns a snapshot of every currently scheduled timer.
func (h *Handle) GetAll(ctx context.Context) ([]Entry, error) {
	r, err := h.inner.Call(ctx, call{kind: callGetAll})
	if err != nil {
		return nil, err
	}
	return r.entries, nil
}
