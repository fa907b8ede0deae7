package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"repoindex/internal/errors"
)

// WriteLockName is the named resource guarding the index write path.
const WriteLockName = "write.lock"

// LockHandle is one emitted lock on a named resource. Close releases it.
// Close is idempotent.
type LockHandle struct {
	name    string
	once    sync.Once
	release func() error
	onClose func(*LockHandle)
}

// Name returns the lock resource name.
func (h *LockHandle) Name() string {
	return h.name
}

// Close releases the lock.
func (h *LockHandle) Close() error {
	var err error
	h.once.Do(func() {
		if h.release != nil {
			err = h.release()
		}
		if h.onClose != nil {
			h.onClose(h)
		}
	})
	return err
}

// LockFactory emits locks on named resources.
type LockFactory interface {
	Obtain(name string) (*LockHandle, error)
}

// FSLockFactory emits advisory cross-process file locks inside a
// directory, one lock file per resource name.
type FSLockFactory struct {
	dir string
}

// NewFSLockFactory creates a factory bound to the given directory.
func NewFSLockFactory(dir string) *FSLockFactory {
	return &FSLockFactory{dir: dir}
}

// Obtain takes the named lock without blocking. Returns a LockHeld error
// when another process holds it.
func (f *FSLockFactory) Obtain(name string) (*LockHandle, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, errors.IOError("create lock directory", err)
	}

	path := filepath.Join(f.dir, name)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.IOError("acquire lock "+path, err)
	}
	if !ok {
		return nil, errors.LockHeldError("lock held by another process: "+path, nil)
	}

	return &LockHandle{name: name, release: fl.Unlock}, nil
}

// TrackingLockFactory wraps another factory and records every handle it
// emits per resource name, so crashed or leaked holders inside this
// process can be released forcibly without engine cooperation.
type TrackingLockFactory struct {
	base LockFactory

	mu      sync.Mutex
	emitted map[string]map[*LockHandle]struct{}
}

// NewTrackingLockFactory wraps base with handle tracking.
func NewTrackingLockFactory(base LockFactory) *TrackingLockFactory {
	return &TrackingLockFactory{
		base:    base,
		emitted: make(map[string]map[*LockHandle]struct{}),
	}
}

// Obtain emits a tracked lock handle.
func (t *TrackingLockFactory) Obtain(name string) (*LockHandle, error) {
	h, err := t.base.Obtain(name)
	if err != nil {
		return nil, err
	}

	h.onClose = t.untrack

	t.mu.Lock()
	if t.emitted[name] == nil {
		t.emitted[name] = make(map[*LockHandle]struct{})
	}
	t.emitted[name][h] = struct{}{}
	t.mu.Unlock()

	return h, nil
}

// EmittedLocks returns the currently outstanding handles for a name.
func (t *TrackingLockFactory) EmittedLocks(name string) []*LockHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	handles := make([]*LockHandle, 0, len(t.emitted[name]))
	for h := range t.emitted[name] {
		handles = append(handles, h)
	}
	return handles
}

// ForceRelease closes every outstanding handle emitted for a name.
func (t *TrackingLockFactory) ForceRelease(name string) error {
	var firstErr error
	for _, h := range t.EmittedLocks(name) {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// lockProbe tests whether a lock file is currently held by a live
// process, without keeping the lock.
type lockProbe struct {
	path string
}

func flockProbe(path string) lockProbe {
	return lockProbe{path: path}
}

func (p lockProbe) probe() (held bool, err error) {
	fl := flock.New(p.path)
	ok, err := fl.TryLock()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	_ = fl.Unlock()
	return false, nil
}

func (t *TrackingLockFactory) untrack(h *LockHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if set, ok := t.emitted[h.name]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(t.emitted, h.name)
		}
	}
}
