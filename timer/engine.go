package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/server"
)

// Handle is the opaque capability returned by Start. Like the supervisor
// package, every public method is a thin Call/Cast wrapper around the
// Timer Service's own server.ServerHandle (spec §4.4: "the Timer Service
// is itself a server").
type Handle struct {
	inner    *server.ServerHandle[*state, call, cast, reply]
	stop     chan struct{}
	stopOnce sync.Once
}

// Start loads any persisted entries for opts.KeyPrefix and begins
// accepting Schedule/Cancel/Get/GetAll calls. Overdue entries (loaded with
// a past fireAt) fire on the very first tick.
func Start(opts Options) (*Handle, error) {
	reg := opts.registryOrDefault()
	h := &Handle{stop: make(chan struct{})}

	behavior := server.Behavior[*state, call, cast, reply]{
		Init: func(ctx context.Context) (*state, error) {
			entries, err := loadAll(ctx, opts)
			if err != nil {
				return nil, err
			}
			return &state{opts: opts, entries: entries}, nil
		},
		HandleCall: func(ctx context.Context, msg call, st *state) (*state, reply, error) {
			r, err := handleCall(ctx, st, msg)
			return st, r, err
		},
		HandleCast: func(ctx context.Context, msg cast, st *state) (*state, error) {
			if msg.kind == castTick {
				runTick(ctx, reg, opts, st)
			}
			return st, nil
		},
	}

	inner, err := server.Start(behavior, server.Options[*state]{
		Name:   opts.Name,
		Logger: opts.Logger,
	})
	if err != nil {
		h.stopOnce.Do(func() { close(h.stop) })
		return nil, err
	}
	h.inner = inner

	go runTicker(inner, opts.tickInterval(), h.stop)
	return h, nil
}

// runTicker casts castTick on a fixed interval until either stop closes
// or the service's own Done channel closes (process already gone).
func runTicker(h *server.ServerHandle[*state, call, cast, reply], interval time.Duration, stop chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = h.Cast(cast{kind: castTick})
		case <-h.Done():
			return
		case <-stop:
			return
		}
	}
}

func handleCall(ctx context.Context, st *state, msg call) (reply, error) {
	switch msg.kind {
	case callSchedule:
		return doSchedule(ctx, st, msg)
	case callCancel:
		return doCancel(ctx, st, msg)
	case callGet:
		e, ok := st.entries[msg.timerID]
		if !ok {
			return reply{}, &TimerNotFoundError{TimerID: msg.timerID}
		}
		return reply{timerID: msg.timerID, entry: st.toEntry(e)}, nil
	case callGetAll:
		out := make([]Entry, 0, len(st.entries))
		for _, e := range st.entries {
			out = append(out, st.toEntry(e))
		}
		return reply{entries: out}, nil
	default:
		return reply{}, fmt.Errorf("timer: unknown call kind %d", msg.kind)
	}
}

func doSchedule(ctx context.Context, st *state, msg call) (reply, error) {
	payload, err := json.Marshal(msg.message)
	if err != nil {
		return reply{}, fmt.Errorf("%w: %v", persistence.ErrSerialization, err)
	}
	st.nextID++
	id := fmt.Sprintf("timer-%d", st.nextID)
	e := &liveEntry{
		id:         id,
		targetName: msg.targetName,
		payload:    payload,
		fireAt:     time.Now().Add(msg.delay),
		repeatMs:   msg.repeatMs,
	}
	if err := persistEntry(ctx, st.opts, e); err != nil {
		return reply{}, err
	}
	st.entries[id] = e
	return reply{timerID: id, entry: st.toEntry(e)}, nil
}

func doCancel(ctx context.Context, st *state, msg call) (reply, error) {
	if _, ok := st.entries[msg.timerID]; !ok {
		return reply{ok: false}, nil
	}
	delete(st.entries, msg.timerID)
	if err := deleteEntry(ctx, st.opts, msg.timerID); err != nil {
		st.opts.logf("timer: cancel %s: storage delete failed: %v", msg.timerID, err)
	}
	return reply{ok: true}, nil
}
