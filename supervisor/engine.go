package supervisor

import (
	"context"
	"fmt"

	"github.com/kodflow/actorcore/server"
)

// Handle is the opaque capability returned by Start. Every Supervisor
// method is a thin wrapper around a Call or Cast against the supervisor's
// own server.ServerHandle, so child-table access is always serialized
// through that single worker goroutine.
type Handle struct {
	inner *server.ServerHandle[supState, call, cast, reply]
	ready chan struct{}
}

// Start builds and starts every declared child in order, then begins
// accepting StartChild/TerminateChild/... calls. If any child's Start
// fails, the children already started are stopped in reverse order and
// Start returns that error.
func Start(opts Options) (*Handle, error) {
	if opts.Strategy == SimpleOneForOne {
		if opts.ChildTemplate == nil {
			return nil, &MissingChildTemplateError{}
		}
		if len(opts.Children) > 0 {
			return nil, &InvalidSimpleOneForOneConfigError{Reason: "children must be empty for simple_one_for_one"}
		}
	} else if opts.ChildTemplate != nil {
		return nil, &InvalidSimpleOneForOneConfigError{Reason: "child_template is only valid for simple_one_for_one"}
	}

	h := &Handle{ready: make(chan struct{})}

	behavior := server.Behavior[supState, call, cast, reply]{
		Init: func(ctx context.Context) (supState, error) {
			return initState(opts, h)
		},
		HandleCall: func(ctx context.Context, msg call, state supState) (supState, reply, error) {
			return handleCall(h, state, msg)
		},
		HandleCast: func(ctx context.Context, msg cast, state supState) (supState, error) {
			return handleCast(h, state, msg)
		},
		Terminate: func(reason server.StopReason, state supState) error {
			stopAllReverse(state, reason)
			return nil
		},
	}

	inner, err := server.Start(behavior, server.Options[supState]{
		Name:            opts.Name,
		ShutdownTimeout: opts.shutdownTimeoutOrDefault(),
	})
	if err != nil {
		close(h.ready)
		return nil, err
	}
	h.inner = inner
	close(h.ready)
	return h, nil
}

func initState(opts Options, h *Handle) (supState, error) {
	st := supState{
		strategy:            opts.Strategy,
		template:            opts.ChildTemplate,
		templateRestart:     opts.TemplateRestart,
		templateSignificant: opts.TemplateSignificant,
		byID:                make(map[string]*childRecord),
		intensity:           opts.restartIntensity(),
		autoShutdown:        opts.AutoShutdown,
	}

	for _, spec := range opts.Children {
		if _, exists := st.byID[spec.ID]; exists {
			stopStartedReverse(st.order, Shutdown())
			return supState{}, &DuplicateChildError{ChildID: spec.ID}
		}
		handle, err := spec.Start()
		if err != nil {
			stopStartedReverse(st.order, Shutdown())
			return supState{}, fmt.Errorf("starting child %q: %w", spec.ID, err)
		}
		rec := &childRecord{spec: spec, handle: handle, startOrder: len(st.order), running: true}
		wireExitListener(h, rec)
		st.order = append(st.order, rec)
		st.byID[spec.ID] = rec
		if spec.Significant {
			st.significantAlive++
		}
	}
	st.nextSimpleID = len(opts.Children)
	return st, nil
}

func handleCall(h *Handle, state supState, msg call) (supState, reply, error) {
	switch msg.kind {
	case callStartChild:
		return doStartChild(h, state, msg)
	case callTerminateChild:
		return doTerminateChild(h, state, msg)
	case callRestartChild:
		return doRestartChild(h, state, msg)
	case callGetChildren:
		return state, reply{children: snapshotAll(state)}, nil
	case callGetChild:
		rec, ok := state.byID[msg.childID]
		if !ok {
			return state, reply{}, &ChildNotFoundError{SupervisorID: h.inner.ID(), ChildID: msg.childID}
		}
		return state, reply{child: snapshot(rec)}, nil
	case callCountChildren:
		return state, reply{count: len(state.order)}, nil
	default:
		return state, reply{}, fmt.Errorf("supervisor: unknown call kind %d", msg.kind)
	}
}

func doStartChild(h *Handle, state supState, msg call) (supState, reply, error) {
	if state.strategy == SimpleOneForOne {
		if msg.spec.ID != "" || msg.spec.Start != nil {
			return state, reply{}, &InvalidSimpleOneForOneConfigError{
				SupervisorID: h.inner.ID(),
				Reason:       "use StartSimpleChild for a simple_one_for_one supervisor",
			}
		}
		id := fmt.Sprintf("child-%d", state.nextSimpleID)
		state.nextSimpleID++
		args := msg.args
		tmpl := state.template
		spec := ChildSpec{
			ID:          id,
			Start:       func() (ChildHandle, error) { return tmpl(args) },
			Restart:     state.templateRestart,
			Significant: state.templateSignificant,
		}
		return startChildRecord(h, state, spec)
	}

	if msg.args != nil {
		return state, reply{}, &InvalidSimpleOneForOneConfigError{
			SupervisorID: h.inner.ID(),
			Reason:       "use StartChild for a non simple_one_for_one supervisor",
		}
	}
	spec := msg.spec
	if _, exists := state.byID[spec.ID]; exists {
		return state, reply{}, &DuplicateChildError{SupervisorID: h.inner.ID(), ChildID: spec.ID}
	}
	return startChildRecord(h, state, spec)
}

func startChildRecord(h *Handle, state supState, spec ChildSpec) (supState, reply, error) {
	handle, err := spec.Start()
	if err != nil {
		return state, reply{}, fmt.Errorf("starting child %q: %w", spec.ID, err)
	}
	rec := &childRecord{spec: spec, handle: handle, startOrder: len(state.order), running: true}
	wireExitListener(h, rec)
	state.order = append(state.order, rec)
	state.byID[spec.ID] = rec
	if spec.Significant {
		state.significantAlive++
	}
	return state, reply{child: snapshot(rec)}, nil
}

func doTerminateChild(h *Handle, state supState, msg call) (supState, reply, error) {
	rec, ok := state.byID[msg.childID]
	if !ok {
		return state, reply{}, &ChildNotFoundError{SupervisorID: h.inner.ID(), ChildID: msg.childID}
	}
	if rec.running {
		rec.handle.Stop(Shutdown())
		waitChildDone(rec, shutdownTimeoutFor(rec))
		rec.running = false
	}
	return state, reply{}, nil
}

func doRestartChild(h *Handle, state supState, msg call) (supState, reply, error) {
	rec, ok := state.byID[msg.childID]
	if !ok {
		return state, reply{}, &ChildNotFoundError{SupervisorID: h.inner.ID(), ChildID: msg.childID}
	}
	if rec.running {
		rec.suppressNextExit = true
		rec.handle.Stop(Shutdown())
		waitChildDone(rec, shutdownTimeoutFor(rec))
		rec.running = false
	}
	if err := restartRecord(h, rec); err != nil {
		return state, reply{}, fmt.Errorf("restarting child %q: %w", msg.childID, err)
	}
	return state, reply{child: snapshot(rec)}, nil
}

// handleCast processes castChildExited, the only cast a supervisor
// receives: it implements the restart-strategy table from §4.2.
func handleCast(h *Handle, state supState, msg cast) (supState, error) {
	if msg.kind != castChildExited {
		return state, nil
	}
	rec, ok := state.byID[msg.childID]
	if !ok {
		return state, nil
	}
	if rec.suppressNextExit {
		rec.suppressNextExit = false
		return state, nil
	}
	rec.running = false

	if !restartEligible(rec.spec.Restart, msg.reason) {
		if rec.spec.Significant {
			state.significantAlive--
			applyAutoShutdown(h, &state)
		}
		return state, nil
	}

	switch state.strategy {
	case OneForOne, SimpleOneForOne:
		restartOne(h, &state, rec)
	case OneForAll:
		restartGroup(h, &state, state.order, msg.reason)
	case RestForOne:
		restartGroup(h, &state, state.order[rec.startOrder:], msg.reason)
	}
	return state, nil
}
