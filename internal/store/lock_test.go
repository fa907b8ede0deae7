package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoindex/internal/errors"
)

// memLockFactory is an in-process lock factory for tests. It skips the
// native file-lock path entirely.
type memLockFactory struct {
	held map[string]bool
}

func newMemLockFactory() *memLockFactory {
	return &memLockFactory{held: make(map[string]bool)}
}

func (m *memLockFactory) Obtain(name string) (*LockHandle, error) {
	if m.held[name] {
		return nil, errors.LockHeldError("lock held: "+name, nil)
	}
	m.held[name] = true
	return &LockHandle{name: name, release: func() error {
		m.held[name] = false
		return nil
	}}, nil
}

func TestTrackingLockFactory_TracksEmittedHandles(t *testing.T) {
	f := NewTrackingLockFactory(newMemLockFactory())

	h, err := f.Obtain(WriteLockName)
	require.NoError(t, err)
	assert.Len(t, f.EmittedLocks(WriteLockName), 1)

	require.NoError(t, h.Close())
	assert.Empty(t, f.EmittedLocks(WriteLockName))
}

func TestTrackingLockFactory_ForceReleaseClosesAllHandles(t *testing.T) {
	mem := newMemLockFactory()
	f := NewTrackingLockFactory(mem)

	_, err := f.Obtain(WriteLockName)
	require.NoError(t, err)

	// Second obtain fails while held
	_, err = f.Obtain(WriteLockName)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLockHeld))

	require.NoError(t, f.ForceRelease(WriteLockName))
	assert.Empty(t, f.EmittedLocks(WriteLockName))

	// Lock can be taken again after forced release
	h, err := f.Obtain(WriteLockName)
	require.NoError(t, err)
	_ = h.Close()
}

func TestLockHandle_CloseIsIdempotent(t *testing.T) {
	f := NewTrackingLockFactory(newMemLockFactory())
	h, err := f.Obtain(WriteLockName)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestFSLockFactory_ObtainAndContend(t *testing.T) {
	dir := t.TempDir()
	f := NewFSLockFactory(dir)

	h, err := f.Obtain(WriteLockName)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	// Lock file exists on disk
	_, err = os.Stat(filepath.Join(dir, WriteLockName))
	assert.NoError(t, err)

	// Same-process contention through a second factory
	f2 := NewFSLockFactory(dir)
	_, err = f2.Obtain(WriteLockName)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLockHeld))

	require.NoError(t, h.Close())

	h2, err := f2.Obtain(WriteLockName)
	require.NoError(t, err)
	_ = h2.Close()
}

func TestStore_ForceUnlock_RemovesStaleLockFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	// Simulate a crashed holder: lock file present, nobody holding it.
	lockPath := filepath.Join(dir, WriteLockName)
	require.NoError(t, os.WriteFile(lockPath, nil, 0o644))

	require.NoError(t, s.ForceUnlock())

	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_ForceUnlock_FailsWhileHeld(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	// A holder from a different factory stands in for another process.
	holder := NewFSLockFactory(dir)
	h, err := holder.Obtain(WriteLockName)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	err = s.ForceUnlock()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLockHeld))
}

func TestStore_ForceUnlock_ReleasesOwnTrackedHandles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	// Leak a handle through the store's own tracking factory.
	_, err = s.ObtainWriteLock()
	require.NoError(t, err)
	require.Len(t, s.LockFactory().EmittedLocks(WriteLockName), 1)

	require.NoError(t, s.ForceUnlock())
	assert.Empty(t, s.LockFactory().EmittedLocks(WriteLockName))

	// Lock is obtainable again.
	h, err := s.ObtainWriteLock()
	require.NoError(t, err)
	_ = h.Close()
}
