// Package boltadapter is a reference persistence.StorageAdapter backed by
// an embedded BoltDB file. It is not part of the core runtime; callers
// needing durable storage for the Persistence Manager or the Timer
// Service wire this in explicitly, the same way the core never assumes a
// particular backend.
package boltadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kodflow/actorcore/persistence"
)

// bucketEntries is the single bucket every key lives in. Unlike the
// metrics store this is adapted from, there is only one logical
// collection here: opaque, caller-namespaced persistence entries.
var bucketEntries = []byte("entries")

const dbFileMode = 0o600

// Adapter implements persistence.StorageAdapter (and its optional Cleaner
// and Closer capabilities) over a bbolt database file.
type Adapter struct {
	db *bolt.DB
}

// Open creates or opens a BoltDB file at path and ensures its schema
// exists.
func Open(path string, timeout time.Duration) (*Adapter, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	db, err := bolt.Open(path, dbFileMode, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	a := &Adapter{db: db}
	if err := a.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return a, nil
}

func (a *Adapter) initSchema() error {
	return a.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
}

// Save persists payload under key, overwriting any prior value.
func (a *Adapter) Save(ctx context.Context, key string, payload persistence.PersistedState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrSerialization, err)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), value)
	})
}

// Load retrieves the payload stored under key.
func (a *Adapter) Load(ctx context.Context, key string) (persistence.PersistedState, bool, error) {
	if err := ctx.Err(); err != nil {
		return persistence.PersistedState{}, false, err
	}

	var out persistence.PersistedState
	var found bool
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return persistence.PersistedState{}, false, fmt.Errorf("%w: %v", persistence.ErrDeserialization, err)
	}
	return out, found, nil
}

// Delete removes key, reporting whether a value was actually present.
func (a *Adapter) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var existed bool
	err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	})
	return existed, err
}

// Exists reports whether key currently has a stored value.
func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := a.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketEntries).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// ListKeys returns every stored key with the given prefix. An empty
// prefix lists every key.
func (a *Adapter) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if prefix == "" || strings.HasPrefix(string(k), prefix) {
				keys = append(keys, string(k))
			}
		}
		return nil
	})
	return keys, err
}

// Cleanup removes every entry whose recorded PersistedAtMs is older than
// maxAgeMs, satisfying the optional persistence.Cleaner capability.
func (a *Adapter) Cleanup(ctx context.Context, maxAgeMs int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := time.Now().UnixMilli() - maxAgeMs
	var deleted int

	err := a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		var stale [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var stored persistence.PersistedState
			if err := json.Unmarshal(v, &stored); err != nil {
				continue
			}
			if stored.Metadata.PersistedAtMs < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// Close releases the underlying database file, satisfying the optional
// persistence.Closer capability.
func (a *Adapter) Close() error {
	return a.db.Close()
}
