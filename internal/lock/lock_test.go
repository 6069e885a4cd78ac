package lock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cadence/internal/foundation/errors"
)

func probe(alive map[int]bool) LivenessProbe {
	return func(pid int) (bool, error) { return alive[pid], nil }
}

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".cadence", "cadence.lock")
}

func TestAcquireWritesPID(t *testing.T) {
	path := lockPath(t)
	m := New(path, WithPID(4242), WithProbe(probe(nil)))

	require.NoError(t, m.Acquire())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4242", string(data))
	assert.True(t, m.Held())
}

func TestSecondOwnerConflictsWithoutWriting(t *testing.T) {
	path := lockPath(t)
	first := New(path, WithPID(100), WithProbe(probe(nil)))
	require.NoError(t, first.Acquire())

	second := New(path, WithPID(200), WithProbe(probe(map[int]bool{100: true})))
	err := second.Acquire()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInstance))
	assert.False(t, second.Held())

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Equal(t, "100", string(data), "marker untouched")
}

func TestStaleMarkerIsRemoved(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("999999"), 0o644))

	m := New(path, WithPID(7), WithProbe(probe(map[int]bool{})))
	require.NoError(t, m.Check())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, m.Create())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "7", string(data))
}

func TestGarbageMarkerIsStale(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	called := false
	m := New(path, WithPID(7), WithProbe(func(int) (bool, error) { called = true; return true, nil }))
	require.NoError(t, m.Acquire())
	assert.False(t, called)
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := lockPath(t)
	m := New(path, WithPID(11), WithProbe(probe(nil)))
	require.NoError(t, m.Acquire())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() { defer wg.Done(); m.Release() }()
	}
	wg.Wait()
	m.Release()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, m.Held())
}

func TestReleaseLeavesForeignMarker(t *testing.T) {
	path := lockPath(t)
	m := New(path, WithPID(11), WithProbe(probe(nil)))
	require.NoError(t, m.Acquire())
	require.NoError(t, os.WriteFile(path, []byte("12"), 0o644))

	m.Release()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "12", string(data))
}

func TestReleaseWithoutMarker(t *testing.T) {
	path := lockPath(t)
	m := New(path, WithPID(11), WithProbe(probe(nil)))
	require.NoError(t, m.Acquire())
	require.NoError(t, os.Remove(path))
	m.Release()
}

func TestCreateFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	m := New(filepath.Join(blocker, "cadence.lock"), WithProbe(probe(nil)))
	err := m.Create()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryLock))
	assert.True(t, errors.IsFatal(err))
}

func TestProcessExistsForSelf(t *testing.T) {
	alive, err := ProcessExists(os.Getpid())
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = ProcessExists(0)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestOwner(t *testing.T) {
	path := lockPath(t)
	m := New(path, WithPID(31337), WithProbe(probe(nil)))
	_, ok, err := m.Owner()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Acquire())
	pid, ok, err := m.Owner()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 31337, pid)
}
