// Package queue implements TaskQueue, the work-stealing scheduler that
// coordinates running and waiting Tasks across a pool of pull workers:
// a single mutex, split-largest-task balancing, and a steal-from-
// active-worker fallback, with explicit running/waiting lists,
// per-task worker handles, cancellation, and dynamic thread count.
package queue

import (
	"sync"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/task"
)

// Executor spawns a pull worker to run against a given task, under a given
// worker id. It is supplied by the engine; the queue only calls it while
// growing thread count.
type Executor interface {
	Spawn(workerID int, t *task.Task)
}

// entry pairs a running Task with the identity of the worker that owns
// it, so the queue can find/cancel/steal against specific workers without
// holding worker state itself.
type entry struct {
	id   int
	task *task.Task
}

// TaskQueue is a thread-safe set of running and waiting tasks. The mutex
// is held briefly for enqueue/steal/cancel/resize and never across an
// await point — workers only ever block on their own Task, not the queue.
type TaskQueue struct {
	mu      sync.Mutex
	running []entry
	waiting []*task.Task
}

// New returns an empty TaskQueue.
func New() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue seeds waiting with one Task per input range.
func (q *TaskQueue) Enqueue(ranges []progress.ByteRange) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range ranges {
		q.waiting = append(q.waiting, task.New(r))
	}
}

// Register records that workerID owns runningTask as a running task.
// SetThreads and Steal do their own running bookkeeping; Register is for
// callers that assign tasks to workers outside those two paths.
func (q *TaskQueue) Register(workerID int, runningTask *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = append(q.running, entry{id: workerID, task: runningTask})
}

// Steal is called by a worker whose own task has drained. It first tries
// to hand the worker a waiting task: the oldest waiting task is moved to
// running under selfID and returned, and the caller replaces its own task
// reference with it. If no
// waiting task exists, it finds the running task with the most remaining
// work and, if at least 2*minChunk remains, splits it and hands the back
// half to the caller. Ties break toward the lowest worker id for
// reproducibility. Returns the task to run next, or nil if there is
// nothing left anywhere.
func (q *TaskQueue) Steal(selfID int, minChunk uint64) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.waiting); n > 0 {
		t := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.running = append(q.running, entry{id: selfID, task: t})
		return t
	}

	bestIdx := -1
	var bestRemaining uint64
	var bestID int
	for i, e := range q.running {
		if e.id == selfID {
			continue
		}
		remaining := e.task.Snapshot().Len()
		if remaining < 2*minChunk {
			continue
		}
		if bestIdx == -1 || remaining > bestRemaining || (remaining == bestRemaining && e.id < bestID) {
			bestIdx = i
			bestRemaining = remaining
			bestID = e.id
		}
	}
	if bestIdx == -1 {
		return nil
	}

	back := q.running[bestIdx].task.SplitHalf()
	if back == nil {
		return nil
	}
	q.running = append(q.running, entry{id: selfID, task: back})
	return back
}

// CancelTask removes t from running if it is currently registered to
// selfID. The engine's pull worker calls this as soon as an advance drains
// its task, before it tries to steal more work, so a drained task is no
// longer considered for splitting.
func (q *TaskQueue) CancelTask(t *task.Task, selfID int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.running {
		if e.task == t && e.id == selfID {
			q.running = append(q.running[:i], q.running[i+1:]...)
			return
		}
	}
}

// SetThreads reconciles the number of running tasks toward n.
//
// Growing requires an executor: if executor is nil, growth is a no-op and
// SetThreads reports that it left thread count unchanged (returns false);
// shrinking still proceeds regardless. When growing, waiting tasks are
// drained into running first (spawning one worker each); if that isn't
// enough, the largest running task is repeatedly split and a new worker
// spawned on the back half. Shrinking removes the most recently started
// workers from the running bookkeeping and returns their tasks to waiting,
// reporting their worker ids so the caller can actually stop those pull
// workers — the queue itself has no handle on a worker's goroutine.
func (q *TaskQueue) SetThreads(n int, minChunk uint64, nextWorkerID *int, executor Executor) (bool, []int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.running) {
		if executor == nil {
			return false, nil
		}
		for len(q.running) < n && len(q.waiting) > 0 {
			t := q.waiting[0]
			q.waiting = q.waiting[1:]
			id := *nextWorkerID
			*nextWorkerID++
			q.running = append(q.running, entry{id: id, task: t})
			executor.Spawn(id, t)
		}
		for len(q.running) < n {
			bestIdx := -1
			var bestRemaining uint64
			for i, e := range q.running {
				remaining := e.task.Snapshot().Len()
				if remaining >= 2*minChunk && (bestIdx == -1 || remaining > bestRemaining) {
					bestIdx = i
					bestRemaining = remaining
				}
			}
			if bestIdx == -1 {
				break
			}
			back := q.running[bestIdx].task.SplitHalf()
			if back == nil {
				break
			}
			id := *nextWorkerID
			*nextWorkerID++
			q.running = append(q.running, entry{id: id, task: back})
			executor.Spawn(id, back)
		}
		return true, nil
	}

	var evicted []int
	for len(q.running) > n {
		last := len(q.running) - 1
		e := q.running[last]
		q.running = q.running[:last]
		if remaining := e.task.Snapshot(); !remaining.Empty() {
			q.waiting = append(q.waiting, e.task)
		}
		evicted = append(evicted, e.id)
	}
	return true, evicted
}

// Len returns the number of tasks across running and waiting.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running) + len(q.waiting)
}

// RunningCount returns the number of currently registered running tasks.
func (q *TaskQueue) RunningCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// WaitingCount returns the number of tasks not yet assigned to a worker.
func (q *TaskQueue) WaitingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// TotalRemaining sums the remaining bytes across running and waiting
// tasks.
func (q *TaskQueue) TotalRemaining() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var total uint64
	for _, e := range q.running {
		total += e.task.Snapshot().Len()
	}
	for _, t := range q.waiting {
		total += t.Snapshot().Len()
	}
	return total
}
