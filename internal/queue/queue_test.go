package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/task"
)

func TestEnqueueAndSteal_PrefersWaiting(t *testing.T) {
	q := New()
	q.Enqueue([]progress.ByteRange{{Start: 0, End: 10}, {Start: 10, End: 20}})

	got := q.Steal(1, 1)
	require.NotNil(t, got, "expected a waiting task")
	assert.Equal(t, progress.ByteRange{Start: 0, End: 10}, got.Snapshot())
	assert.Equal(t, 1, q.WaitingCount())
}

func TestSteal_SplitsLargestRunningTask(t *testing.T) {
	q := New()
	big := task.New(progress.ByteRange{Start: 0, End: 100})
	small := task.New(progress.ByteRange{Start: 100, End: 110})
	q.Register(1, big)
	q.Register(2, small)

	got := q.Steal(3, 1)
	require.NotNil(t, got, "expected a stolen task from splitting the largest running task")
	// big was [0,100), should now be split into two halves of 50 each.
	assert.EqualValues(t, 50, big.Snapshot().Len())
	assert.EqualValues(t, 50, got.Snapshot().Len())
}

func TestSteal_RefusesBelowMinChunk(t *testing.T) {
	q := New()
	small := task.New(progress.ByteRange{Start: 0, End: 3})
	q.Register(1, small)

	assert.Nil(t, q.Steal(2, 10), "expected nil steal below min chunk threshold")
}

func TestSteal_NothingLeftReturnsNil(t *testing.T) {
	q := New()
	assert.Nil(t, q.Steal(1, 1), "expected nil on empty queue")
}

func TestSteal_TieBreaksOnLowestWorkerID(t *testing.T) {
	q := New()
	a := task.New(progress.ByteRange{Start: 0, End: 100})
	b := task.New(progress.ByteRange{Start: 1000, End: 1100})
	// Register b (id 5) before a (id 2); equal remaining, should prefer id 2 (a).
	q.Register(5, b)
	q.Register(2, a)

	got := q.Steal(9, 1)
	require.NotNil(t, got, "expected a steal")
	assert.Less(t, got.Snapshot().Start, uint64(1000), "expected tie-break toward lowest worker id, stole from b's range instead")
}

func TestCancelTask_RemovesOnlyMatchingOwner(t *testing.T) {
	q := New()
	tk := task.New(progress.ByteRange{Start: 0, End: 10})
	q.Register(1, tk)

	q.CancelTask(tk, 2) // wrong owner, no-op
	require.Equal(t, 1, q.RunningCount(), "expected task to remain registered")

	q.CancelTask(tk, 1)
	assert.Equal(t, 0, q.RunningCount(), "expected task removed")
}

type fakeExecutor struct {
	spawned []int
}

func (f *fakeExecutor) Spawn(workerID int, t *task.Task) {
	f.spawned = append(f.spawned, workerID)
}

func TestSetThreads_GrowWithoutExecutorIsNoop(t *testing.T) {
	q := New()
	q.Enqueue([]progress.ByteRange{{Start: 0, End: 10}})
	nextID := 0

	ok, evicted := q.SetThreads(4, 1, &nextID, nil)
	assert.False(t, ok, "expected SetThreads to report false when growing with a nil executor")
	assert.Nil(t, evicted, "expected no evicted workers on growth")
	assert.Equal(t, 0, q.RunningCount(), "running count should be unchanged")
}

func TestSetThreads_GrowDrainsWaitingThenSplits(t *testing.T) {
	q := New()
	q.Enqueue([]progress.ByteRange{{Start: 0, End: 10}})
	exec := &fakeExecutor{}
	nextID := 0

	ok, evicted := q.SetThreads(3, 1, &nextID, exec)
	require.True(t, ok, "expected growth to succeed with an executor")
	assert.Nil(t, evicted, "expected no evicted workers on growth")
	assert.Equal(t, 3, q.RunningCount(), "1 waiting drained + 2 splits")
	assert.Len(t, exec.spawned, 3)
}

func TestSetThreads_ShrinkReturnsTasksToWaiting(t *testing.T) {
	q := New()
	a := task.New(progress.ByteRange{Start: 0, End: 10})
	b := task.New(progress.ByteRange{Start: 10, End: 20})
	q.Register(1, a)
	q.Register(2, b)
	nextID := 3

	ok, evicted := q.SetThreads(1, 1, &nextID, nil)
	require.True(t, ok, "expected shrink to succeed without an executor")
	assert.Equal(t, 1, q.RunningCount())
	assert.Equal(t, 1, q.WaitingCount())
	assert.Equal(t, []int{2}, evicted, "expected evicted = [2] (the most recently registered worker)")
}

func TestTotalRemaining(t *testing.T) {
	q := New()
	q.Enqueue([]progress.ByteRange{{Start: 0, End: 10}})
	q.Register(1, task.New(progress.ByteRange{Start: 100, End: 130}))

	assert.EqualValues(t, 40, q.TotalRemaining())
}
