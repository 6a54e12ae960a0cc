package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Migrate upgrades a state serialized under an older schema version into
// the current one. raw is the exact bytes previously stored; fromVersion
// is the schema version recorded alongside them.
type Migrate[S any] func(raw []byte, fromVersion int) (S, error)

// Options configures a Manager. Adapter and Key are required; everything
// else has a documented zero-value default matching spec §4.1/§4.5.
type Options[S any] struct {
	// Adapter is the storage backend. Required.
	Adapter StorageAdapter
	// Key namespaces this binding's entries within Adapter.
	Key string
	// ServerID/ServerName are recorded in saved metadata for diagnostics.
	ServerID   string
	ServerName string

	// SchemaVersion is the current schema version this binding writes.
	SchemaVersion int
	// Migrate upgrades a state loaded under a different schema version.
	// Restore fails with MigrationError if the versions differ and
	// Migrate is nil.
	Migrate Migrate[S]

	// ChecksumEnabled computes and verifies a SHA-256 checksum of the
	// canonical serialization on every save/restore.
	ChecksumEnabled bool

	// DebounceMs coalesces Save calls arriving within the window into a
	// single write. Zero disables debouncing: every Save writes
	// immediately.
	DebounceMs int64
	// MaxStateAgeMs discards a restored state older than this many
	// milliseconds with StaleStateError. Zero disables the check.
	MaxStateAgeMs int64

	// RestoreOnStart, PersistOnShutdown, and CleanupOnTerminate mirror
	// the identically named server.Options.Persistence flags; the
	// Manager only exposes them as read-only booleans so the server
	// package can drive the integration described in spec §4.1/§4.5.
	RestoreOnStart     bool
	PersistOnShutdown  bool
	CleanupOnTerminate bool

	// SnapshotIntervalMs, when non-zero, is the interval at which the
	// server package forces a flush regardless of debounce/change.
	SnapshotIntervalMs int64

	// OnError receives any error raised by a debounced (non-synchronous)
	// save, since that path has no caller to return the error to.
	OnError func(error)
}

// Manager implements the Persistence Manager (spec §4.5) for a single
// server binding: one Manager instance backs one server's state.
type Manager[S any] struct {
	opts Options[S]

	mu           sync.Mutex
	timer        *time.Timer
	pendingState S
	hasPending   bool
	lastMeta     Metadata
	haveLastMeta bool
}

// New constructs a Manager. It does not touch storage; call Restore to
// load any existing snapshot.
func New[S any](opts Options[S]) *Manager[S] {
	return &Manager[S]{opts: opts}
}

// RestoreOnStart reports whether the server engine should call Restore
// during Start.
func (m *Manager[S]) RestoreOnStart() bool { return m.opts.RestoreOnStart }

// PersistOnShutdown reports whether the server engine should force a
// synchronous Checkpoint before running Terminate on an orderly stop (on
// a crash the engine runs that Checkpoint after Terminate).
func (m *Manager[S]) PersistOnShutdown() bool { return m.opts.PersistOnShutdown }

// CleanupOnTerminate reports whether the server engine should call
// Delete after Terminate completes.
func (m *Manager[S]) CleanupOnTerminate() bool { return m.opts.CleanupOnTerminate }

// SnapshotInterval returns the configured periodic-flush interval, or 0
// if periodic snapshotting is disabled.
func (m *Manager[S]) SnapshotInterval() time.Duration {
	return time.Duration(m.opts.SnapshotIntervalMs) * time.Millisecond
}

// Restore loads, verifies, and migrates the stored state for this
// binding. ok is false when nothing has ever been saved under Key; that
// is not an error. The caller (server.Start) is responsible for applying
// Behavior.OnStateRestore and substituting the result for Init's value.
func (m *Manager[S]) Restore(ctx context.Context) (state S, meta Metadata, ok bool, err error) {
	var zero S
	stored, found, err := m.opts.Adapter.Load(ctx, m.opts.Key)
	if err != nil {
		return zero, Metadata{}, false, &StorageError{Operation: "load", Cause: err}
	}
	if !found {
		return zero, Metadata{}, false, nil
	}

	if m.opts.ChecksumEnabled {
		if err := verifyChecksum(m.opts.Key, stored); err != nil {
			return zero, Metadata{}, false, err
		}
	}

	state, err = m.decode(stored)
	if err != nil {
		return zero, Metadata{}, false, err
	}

	if m.opts.MaxStateAgeMs > 0 {
		age := nowMs() - stored.Metadata.PersistedAtMs
		if age > m.opts.MaxStateAgeMs {
			return zero, Metadata{}, false, &StaleStateError{
				Key:      m.opts.Key,
				AgeMs:    age,
				MaxAgeMs: m.opts.MaxStateAgeMs,
			}
		}
	}

	m.mu.Lock()
	m.lastMeta = stored.Metadata
	m.haveLastMeta = true
	m.mu.Unlock()

	return state, stored.Metadata, true, nil
}

// decode unmarshals stored.State into S, migrating first if the stored
// schema version differs from the binding's current version.
func (m *Manager[S]) decode(stored PersistedState) (S, error) {
	var zero S
	if stored.Metadata.SchemaVersion != m.opts.SchemaVersion {
		if m.opts.Migrate == nil {
			return zero, &MigrationError{
				Key:         m.opts.Key,
				FromVersion: stored.Metadata.SchemaVersion,
				ToVersion:   m.opts.SchemaVersion,
				Cause:       fmt.Errorf("no Migrate function configured"),
			}
		}
		migrated, err := m.opts.Migrate(stored.State, stored.Metadata.SchemaVersion)
		if err != nil {
			return zero, &MigrationError{
				Key:         m.opts.Key,
				FromVersion: stored.Metadata.SchemaVersion,
				ToVersion:   m.opts.SchemaVersion,
				Cause:       err,
			}
		}
		return migrated, nil
	}

	var state S
	if err := json.Unmarshal(stored.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return state, nil
}

// Save schedules state to be persisted, coalescing with any other Save
// arriving within DebounceMs. When DebounceMs is zero, it writes
// synchronously and returns the write's error.
func (m *Manager[S]) Save(ctx context.Context, state S) error {
	if m.opts.DebounceMs <= 0 {
		return m.writeNow(ctx, state)
	}

	m.mu.Lock()
	m.pendingState = state
	m.hasPending = true
	delay := time.Duration(m.opts.DebounceMs) * time.Millisecond
	if m.timer == nil {
		m.timer = time.AfterFunc(delay, m.flush)
	} else {
		m.timer.Reset(delay)
	}
	m.mu.Unlock()
	return nil
}

// flush is the debounce timer callback: it writes the most recent
// pending state and reports any error via OnError, since there is no
// synchronous caller waiting on a debounced save.
func (m *Manager[S]) flush() {
	m.mu.Lock()
	state := m.pendingState
	pending := m.hasPending
	m.hasPending = false
	m.mu.Unlock()

	if !pending {
		return
	}
	if err := m.writeNow(context.Background(), state); err != nil && m.opts.OnError != nil {
		m.opts.OnError(err)
	}
}

// Checkpoint forces an immediate, synchronous write of state, bypassing
// and cancelling any pending debounced save.
func (m *Manager[S]) Checkpoint(ctx context.Context, state S) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.hasPending = false
	m.mu.Unlock()
	return m.writeNow(ctx, state)
}

// writeNow serializes state canonically, computes a checksum if enabled,
// and saves the envelope through the adapter.
func (m *Manager[S]) writeNow(ctx context.Context, state S) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	meta := Metadata{
		PersistedAtMs: nowMs(),
		ServerID:      m.opts.ServerID,
		ServerName:    m.opts.ServerName,
		SchemaVersion: m.opts.SchemaVersion,
	}
	if m.opts.ChecksumEnabled {
		meta.Checksum = checksumOf(payload)
	}

	if err := m.opts.Adapter.Save(ctx, m.opts.Key, PersistedState{State: payload, Metadata: meta}); err != nil {
		return &StorageError{Operation: "save", Cause: err}
	}

	m.mu.Lock()
	m.lastMeta = meta
	m.haveLastMeta = true
	m.mu.Unlock()
	return nil
}

// Delete removes this binding's stored snapshot, if any.
func (m *Manager[S]) Delete(ctx context.Context) error {
	if _, err := m.opts.Adapter.Delete(ctx, m.opts.Key); err != nil {
		return &StorageError{Operation: "delete", Cause: err}
	}
	return nil
}

// Cleanup sweeps entries older than maxAge, delegating to the adapter's
// optional Cleaner capability. It is a no-op (0, nil) if the adapter does
// not implement Cleaner.
func (m *Manager[S]) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cleaner, ok := m.opts.Adapter.(Cleaner)
	if !ok {
		return 0, nil
	}
	n, err := cleaner.Cleanup(ctx, maxAge.Milliseconds())
	if err != nil {
		return 0, &StorageError{Operation: "cleanup", Cause: err}
	}
	return n, nil
}

// LastCheckpointMeta returns the metadata recorded by the most recent
// successful Restore or write, and whether any has happened yet.
func (m *Manager[S]) LastCheckpointMeta() (Metadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMeta, m.haveLastMeta
}

// Close stops any pending debounce timer and releases the adapter if it
// implements Closer. It does not flush a pending save; call Checkpoint
// first if that is needed.
func (m *Manager[S]) Close() error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	if closer, ok := m.opts.Adapter.(Closer); ok {
		return closer.Close()
	}
	return nil
}

func verifyChecksum(key string, stored PersistedState) error {
	if stored.Metadata.Checksum == "" {
		return nil
	}
	actual := checksumOf(stored.State)
	if actual != stored.Metadata.Checksum {
		return &ChecksumMismatchError{Key: key, Expected: stored.Metadata.Checksum, Actual: actual}
	}
	return nil
}

func checksumOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
