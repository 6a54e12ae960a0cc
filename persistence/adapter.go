// Package persistence implements the Persistence Manager: snapshot
// save/restore with checksums, schema migration, debounced writes, and
// periodic cleanup, built over a pluggable StorageAdapter the caller
// supplies (the core defines the adapter contract; it does not ship a
// production backend — see storage/boltadapter for a reference
// implementation used by this module's own tests).
package persistence

import "context"

// StorageAdapter is the contract a storage backend must satisfy to back a
// Manager or the Timer Service. Implementations must serialize concurrent
// calls for a given key themselves; the Manager serializes its own calls
// per server but makes no assumption about other callers of the same
// adapter instance.
type StorageAdapter interface {
	// Save persists payload under key, overwriting any prior value.
	Save(ctx context.Context, key string, payload PersistedState) error
	// Load retrieves the payload stored under key. It returns
	// (zero, false, nil) when key has never been saved.
	Load(ctx context.Context, key string) (PersistedState, bool, error)
	// Delete removes key. It reports whether a value was actually
	// removed.
	Delete(ctx context.Context, key string) (bool, error)
	// Exists reports whether key currently has a stored value.
	Exists(ctx context.Context, key string) (bool, error)
	// ListKeys returns all stored keys with the given prefix. An empty
	// prefix lists every key.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Cleaner is an optional StorageAdapter capability: backends that can
// sweep entries older than maxAge implement it. Manager.Cleanup uses it
// when present and is a no-op otherwise.
type Cleaner interface {
	Cleanup(ctx context.Context, maxAge int64) (int, error)
}

// Closer is an optional StorageAdapter capability for backends that hold
// an underlying resource (a file handle, a connection) that must be
// released.
type Closer interface {
	Close() error
}

// Metadata describes a PersistedState's provenance, per spec §6's
// snapshot format.
type Metadata struct {
	PersistedAtMs int64
	ServerID      string
	ServerName    string
	SchemaVersion int
	Checksum      string
}

// PersistedState is the adapter-agnostic envelope every StorageAdapter
// stores and retrieves. State holds the already-serialized user payload
// (see Manager's canonical encoding), never a live Go value, so adapters
// never need to know the user's state type.
type PersistedState struct {
	State    []byte
	Metadata Metadata
}
