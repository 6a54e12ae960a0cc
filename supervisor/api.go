package supervisor

import "context"

// ID returns the supervisor's own server id.
//
// A supervisor publishes its lifecycle events (start, crash, terminate)
// through the same process-wide server.OnLifecycleEvent feed every other
// server uses; there is no supervisor-specific subscription API because a
// supervisor is itself a server (§4.2).
func (h *Handle) ID() string { return h.inner.ID() }

// Name returns the name the supervisor was started with, or "".
func (h *Handle) Name() string { return h.inner.Name() }

// Done returns a channel closed once the supervisor (and, by the time it
// closes, every remaining child) has fully stopped.
func (h *Handle) Done() <-chan struct{} { return h.inner.Done() }

// IsRunning is a non-blocking status probe.
func (h *Handle) IsRunning() bool { return h.inner.IsRunning() }

// Stop requests an orderly shutdown: every remaining child is stopped in
// reverse start order, each bounded by its own ShutdownTimeout.
func (h *Handle) Stop(reason StopReason) error { return h.inner.Stop(reason) }

// StartChild adds a new child under a non-SimpleOneForOne supervisor.
// It fails with DuplicateChildError if spec.ID collides with an existing
// child.
func (h *Handle) StartChild(ctx context.Context, spec ChildSpec) (ChildInfo, error) {
	r, err := h.inner.Call(ctx, call{kind: callStartChild, spec: spec})
	if err != nil {
		return ChildInfo{}, err
	}
	return r.child, nil
}

// StartSimpleChild adds a new child under a SimpleOneForOne supervisor,
// applying args to the supervisor's ChildTemplate. The child id is
// auto-generated.
func (h *Handle) StartSimpleChild(ctx context.Context, args any) (ChildInfo, error) {
	r, err := h.inner.Call(ctx, call{kind: callStartChild, args: args})
	if err != nil {
		return ChildInfo{}, err
	}
	return r.child, nil
}

// TerminateChild stops childID. A Permanent child is restarted by the
// normal exit-handling path that follows; Transient and Temporary
// children are left stopped.
func (h *Handle) TerminateChild(ctx context.Context, childID string) error {
	_, err := h.inner.Call(ctx, call{kind: callTerminateChild, childID: childID})
	return err
}

// RestartChild forces childID to restart, regardless of its restart
// policy or the supervisor's strategy.
func (h *Handle) RestartChild(ctx context.Context, childID string) (ChildInfo, error) {
	r, err := h.inner.Call(ctx, call{kind: callRestartChild, childID: childID})
	if err != nil {
		return ChildInfo{}, err
	}
	return r.child, nil
}

// GetChildren returns a snapshot of every child in start order.
func (h *Handle) GetChildren(ctx context.Context) ([]ChildInfo, error) {
	r, err := h.inner.Call(ctx, call{kind: callGetChildren})
	if err != nil {
		return nil, err
	}
	return r.children, nil
}

// GetChild returns a snapshot of one child, failing with
// ChildNotFoundError if childID is unknown.
func (h *Handle) GetChild(ctx context.Context, childID string) (ChildInfo, error) {
	r, err := h.inner.Call(ctx, call{kind: callGetChild, childID: childID})
	if err != nil {
		return ChildInfo{}, err
	}
	return r.child, nil
}

// CountChildren returns the number of children in the table, running or
// not.
func (h *Handle) CountChildren(ctx context.Context) (int, error) {
	r, err := h.inner.Call(ctx, call{kind: callCountChildren})
	if err != nil {
		return 0, err
	}
	return r.count, nil
}
