// Package task implements Task, the atomic scheduling unit the engine and
// TaskQueue operate on: a single [start, end) byte range that can be
// observed, advanced, split, or taken over by a concurrent steal without
// ever exposing a half-updated state to another goroutine.
//
// A lock-free design might pack both endpoints into one 128-bit CAS
// word, but Go has no portable 128-bit atomic. Task substitutes a small
// mutex-protected struct instead — semantics are unchanged, only the
// contention profile differs — with every method holding the lock only
// across the transition it commits.
package task

import (
	"errors"
	"sync"

	"github.com/surge-downloader/surge/internal/progress"
)

// ErrStale is returned by SafeAdvance when the caller's observed start no
// longer matches the task's current start — a concurrent advance already
// moved it.
var ErrStale = errors.New("task: stale observed start")

// Task is the atomic scheduling unit: a mutable [start, end) range owned
// by one worker at a time, but observable and splittable by others via
// the TaskQueue.
type Task struct {
	mu    sync.Mutex
	start uint64
	end   uint64
}

// New returns a Task covering r.
func New(r progress.ByteRange) *Task {
	return &Task{start: r.Start, end: r.End}
}

// Snapshot returns the task's current range.
func (t *Task) Snapshot() progress.ByteRange {
	t.mu.Lock()
	defer t.mu.Unlock()
	return progress.ByteRange{Start: t.start, End: t.end}
}

// Drained reports whether the task has no remaining bytes.
func (t *Task) Drained() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start == t.end
}

// SafeAdvance commits progress: it bumps start by at most delta, clamped
// to end, and returns the sub-range actually consumed. If observedStart no
// longer matches the task's current start (because a concurrent advance
// already moved it; a split only moves end), or if start+delta overflows, it
// returns ErrStale and the caller must drop the chunk it was about to
// commit and re-snapshot.
func (t *Task) SafeAdvance(observedStart uint64, delta uint64) (progress.ByteRange, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.start != observedStart {
		return progress.ByteRange{}, ErrStale
	}
	newStart := t.start + delta
	if newStart < t.start { // overflow
		return progress.ByteRange{}, ErrStale
	}
	if newStart > t.end {
		newStart = t.end
	}
	consumed := progress.ByteRange{Start: t.start, End: newStart}
	t.start = newStart
	return consumed, nil
}

// SplitHalf atomically shrinks the task to its front half and returns the
// back half as a new, independent Task. It returns nil if the remaining
// length is less than 2 (there is nothing useful to split off).
func (t *Task) SplitHalf() *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.end - t.start
	if remaining < 2 {
		return nil
	}
	mid := t.start + remaining/2
	if mid == t.start {
		return nil
	}
	back := &Task{start: mid, end: t.end}
	t.end = mid
	return back
}

// Take atomically moves the whole remaining range to the caller and
// leaves the task drained.
func (t *Task) Take() progress.ByteRange {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := progress.ByteRange{Start: t.start, End: t.end}
	t.start = t.end
	return r
}
