package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTickID = "tick-1"

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	at := time.Date(2024, 3, 4, 10, 0, 0, 123e6, time.UTC)

	require.NoError(t, store.Append(ctx, testTickID, "TestEvent", at, []byte(`{"test":"data"}`), map[string]string{"key": "value"}))

	events, err := store.GetByTickID(ctx, testTickID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, testTickID, ev.TickID())
	assert.Equal(t, "TestEvent", ev.Type())
	assert.JSONEq(t, `{"test":"data"}`, string(ev.Payload()))
	assert.Equal(t, "value", ev.Metadata()["key"])
	assert.True(t, at.Equal(ev.Timestamp()), "millisecond precision kept")
}

func TestEventStoreGetRange(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, store.Append(ctx, testTickID, "E", base.Add(time.Duration(i)*time.Hour), nil, nil))
	}

	events, err := store.GetRange(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEventStorePersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := t.Context()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, testTickID, TypeTickStarted, time.Now(), []byte(`{}`), nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.GetByTickID(ctx, testTickID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
