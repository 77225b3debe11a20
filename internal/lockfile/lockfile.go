// Package lockfile provides a single-instance advisory file lock built
// on gofrs/flock.TryLock over a lock file under the config directory,
// exposed as a reusable *Lock type so callers can also use it to guard
// per-destination writes, not just the single process instance.
package lockfile

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock wraps an advisory file lock.
type Lock struct {
	fl   *flock.Flock
	path string
}

// TryAcquire attempts to acquire an exclusive lock on path without
// blocking. ok is true if this call acquired it; false means another
// process (or another TryAcquire on an unrelated Lock in this process)
// already holds it.
func TryAcquire(path string) (l *Lock, ok bool, err error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("lockfile: try lock %s: %w", path, err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{fl: fl, path: path}, true, nil
}

// Release unlocks the file. Safe to call on a nil *Lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Path returns the path this lock guards.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}
