package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kodflow/actorcore/persistence"
)

type counterState struct {
	Count       int `json:"count"`
	LastUpdated int `json:"lastUpdated,omitempty"`
}

func TestManager_SaveRestoreRoundTrip(t *testing.T) {
	adapter := newMemAdapter()
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter:         adapter,
		Key:             "counter",
		SchemaVersion:   1,
		ChecksumEnabled: true,
	})

	require.NoError(t, mgr.Checkpoint(context.Background(), counterState{Count: 5}))

	state, meta, ok, err := mgr.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, counterState{Count: 5}, state)
	require.Equal(t, 1, meta.SchemaVersion)
	require.NotEmpty(t, meta.Checksum)
}

func TestManager_RestoreMissingIsNotAnError(t *testing.T) {
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter: newMemAdapter(),
		Key:     "missing",
	})

	_, _, ok, err := mgr.Restore(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManager_ChecksumMismatchFailsRestore(t *testing.T) {
	adapter := newMemAdapter()
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter:         adapter,
		Key:             "counter",
		SchemaVersion:   1,
		ChecksumEnabled: true,
	})
	require.NoError(t, mgr.Checkpoint(context.Background(), counterState{Count: 1}))

	// Corrupt the stored checksum directly through the adapter.
	stored, _, _ := adapter.Load(context.Background(), "counter")
	stored.Metadata.Checksum = "deadbeef"
	require.NoError(t, adapter.Save(context.Background(), "counter", stored))

	_, _, _, err := mgr.Restore(context.Background())
	require.ErrorIs(t, err, persistence.ErrChecksumMismatch)
}

func TestManager_MigrationAppliedOnVersionMismatch(t *testing.T) {
	adapter := newMemAdapter()
	v1 := persistence.New(persistence.Options[struct {
		Count int `json:"count"`
	}]{Adapter: adapter, Key: "counter", SchemaVersion: 1})
	require.NoError(t, v1.Checkpoint(context.Background(), struct {
		Count int `json:"count"`
	}{Count: 5}))

	v2 := persistence.New(persistence.Options[counterState]{
		Adapter:       adapter,
		Key:           "counter",
		SchemaVersion: 2,
		Migrate: func(raw []byte, fromVersion int) (counterState, error) {
			require.Equal(t, 1, fromVersion)
			var old struct {
				Count int `json:"count"`
			}
			if err := json.Unmarshal(raw, &old); err != nil {
				return counterState{}, err
			}
			return counterState{Count: old.Count, LastUpdated: 0}, nil
		},
	})

	state, _, ok, err := v2.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, counterState{Count: 5, LastUpdated: 0}, state)

	require.NoError(t, v2.Checkpoint(context.Background(), state))
	meta, ok := v2.LastCheckpointMeta()
	require.True(t, ok)
	require.Equal(t, 2, meta.SchemaVersion)
}

func TestManager_NoMigrateFailsOnVersionMismatch(t *testing.T) {
	adapter := newMemAdapter()
	v1 := persistence.New(persistence.Options[counterState]{Adapter: adapter, Key: "counter", SchemaVersion: 1})
	require.NoError(t, v1.Checkpoint(context.Background(), counterState{Count: 1}))

	v2 := persistence.New(persistence.Options[counterState]{Adapter: adapter, Key: "counter", SchemaVersion: 2})
	_, _, _, err := v2.Restore(context.Background())
	require.ErrorIs(t, err, persistence.ErrMigrationFailed)
}

func TestManager_StaleStateRejected(t *testing.T) {
	adapter := newMemAdapter()
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter:       adapter,
		Key:           "counter",
		MaxStateAgeMs: 50,
	})
	require.NoError(t, mgr.Checkpoint(context.Background(), counterState{Count: 1}))
	time.Sleep(80 * time.Millisecond)

	_, _, _, err := mgr.Restore(context.Background())
	require.ErrorIs(t, err, persistence.ErrStaleState)
}

func TestManager_DebouncedSavesCoalesce(t *testing.T) {
	adapter := newMemAdapter()
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter:    adapter,
		Key:        "counter",
		DebounceMs: 40,
	})

	for i := 1; i <= 5; i++ {
		require.NoError(t, mgr.Save(context.Background(), counterState{Count: i}))
	}

	// Immediately after, nothing should be written yet (debounce window
	// still open).
	_, ok, _ := adapter.Load(context.Background(), "counter")
	require.False(t, ok)

	require.Eventually(t, func() bool {
		stored, ok, _ := adapter.Load(context.Background(), "counter")
		return ok && stored.Metadata.PersistedAtMs > 0
	}, time.Second, 5*time.Millisecond)

	state, _, ok, err := mgr.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, state.Count)
}

func TestManager_CheckpointForcesImmediateWrite(t *testing.T) {
	adapter := newMemAdapter()
	mgr := persistence.New(persistence.Options[counterState]{
		Adapter:    adapter,
		Key:        "counter",
		DebounceMs: 10_000,
	})

	require.NoError(t, mgr.Save(context.Background(), counterState{Count: 1}))
	require.NoError(t, mgr.Checkpoint(context.Background(), counterState{Count: 2}))

	stored, ok, _ := adapter.Load(context.Background(), "counter")
	require.True(t, ok)
	require.JSONEq(t, `{"count":2}`, string(stored.State))
}
