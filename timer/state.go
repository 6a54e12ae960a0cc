package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kodflow/actorcore/persistence"
	"github.com/kodflow/actorcore/registry"
)

// liveEntry is one in-memory scheduled timer. payload is the message's
// canonical JSON form; it is what actually gets redelivered, decoded
// fresh into the target's own Cast type on every fire, so a reloaded
// entry behaves identically to one that never left memory.
type liveEntry struct {
	id         string
	targetName string
	payload    json.RawMessage
	fireAt     time.Time
	repeatMs   int64
}

// storedEntry is the JSON-serializable form written to the
// StorageAdapter.
type storedEntry struct {
	ID         string          `json:"id"`
	TargetName string          `json:"targetName"`
	Message    json.RawMessage `json:"message"`
	FireAtMs   int64           `json:"fireAtMs"`
	RepeatMs   int64           `json:"repeatMs"`
}

type state struct {
	opts    Options
	entries map[string]*liveEntry
	nextID  uint64
}

// toEntry decodes payload into a generic value purely for inspection via
// Get/GetAll; it plays no part in delivery.
func (s *state) toEntry(e *liveEntry) Entry {
	var msg any
	_ = json.Unmarshal(e.payload, &msg)
	return Entry{
		ID:         e.id,
		TargetName: e.targetName,
		Message:    msg,
		FireAt:     e.fireAt,
		RepeatMs:   e.repeatMs,
	}
}

// loadAll reads every persisted entry under KeyPrefix at startup. Entries
// already due fire on the first tick (spec §4.4's catch-up semantics); no
// special handling is needed here beyond loading fireAt as stored.
func loadAll(ctx context.Context, opts Options) (map[string]*liveEntry, error) {
	keys, err := opts.Adapter.ListKeys(ctx, opts.KeyPrefix)
	if err != nil {
		return nil, &persistence.StorageError{Operation: "listKeys", Cause: err}
	}

	out := make(map[string]*liveEntry, len(keys))
	for _, key := range keys {
		stored, found, err := opts.Adapter.Load(ctx, key)
		if err != nil {
			opts.logf("timer: failed loading %s: %v", key, err)
			continue
		}
		if !found {
			continue
		}
		var se storedEntry
		if err := json.Unmarshal(stored.State, &se); err != nil {
			opts.logf("timer: corrupted entry at %s: %v", key, err)
			continue
		}
		out[se.ID] = &liveEntry{
			id:         se.ID,
			targetName: se.TargetName,
			payload:    se.Message,
			fireAt:     time.UnixMilli(se.FireAtMs),
			repeatMs:   se.RepeatMs,
		}
	}
	return out, nil
}

// persistEntry writes one entry's current form to storage.
func persistEntry(ctx context.Context, opts Options, e *liveEntry) error {
	se := storedEntry{
		ID:         e.id,
		TargetName: e.targetName,
		Message:    e.payload,
		FireAtMs:   e.fireAt.UnixMilli(),
		RepeatMs:   e.repeatMs,
	}
	body, err := json.Marshal(se)
	if err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrSerialization, err)
	}
	if err := opts.Adapter.Save(ctx, opts.KeyPrefix+e.id, persistence.PersistedState{State: body}); err != nil {
		return &persistence.StorageError{Operation: "save", Cause: err}
	}
	return nil
}

func deleteEntry(ctx context.Context, opts Options, id string) error {
	if _, err := opts.Adapter.Delete(ctx, opts.KeyPrefix+id); err != nil {
		return &persistence.StorageError{Operation: "delete", Cause: err}
	}
	return nil
}

// runTick scans for due entries and delivers each: cast best-effort,
// reschedule if repeating, otherwise delete. It never returns an error;
// per-entry failures are logged and do not stop the sweep.
func runTick(ctx context.Context, reg *registry.Registry, opts Options, s *state) {
	now := time.Now()
	for id, e := range s.entries {
		if e.fireAt.After(now) {
			continue
		}
		deliver(reg, opts, e)

		if e.repeatMs > 0 {
			e.fireAt = now.Add(time.Duration(e.repeatMs) * time.Millisecond)
			if err := persistEntry(ctx, opts, e); err != nil {
				opts.logf("timer: failed persisting repeat for %s: %v", id, err)
			}
			continue
		}

		delete(s.entries, id)
		if err := deleteEntry(ctx, opts, id); err != nil {
			opts.logf("timer: failed deleting fired entry %s: %v", id, err)
		}
	}
}

func deliver(reg *registry.Registry, opts Options, e *liveEntry) {
	h, ok := reg.Whereis(e.targetName)
	if !ok {
		opts.logf("timer: target %q not registered, dropping fire of %s", e.targetName, e.id)
		return
	}
	d, ok := h.(Dispatcher)
	if !ok {
		opts.logf("timer: target %q does not implement Dispatcher, dropping fire of %s", e.targetName, e.id)
		return
	}
	if err := d.CastJSON(e.payload); err != nil {
		opts.logf("timer: delivering %s to %q failed: %v", e.id, e.targetName, err)
	}
}
