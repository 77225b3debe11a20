package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/testutil"
	"github.com/surge-downloader/surge/internal/transfer"
)

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

func drainEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining event stream")
		}
	}
}

func mergedRanges(events []Event, kind EventKind) *progress.Set {
	s := progress.NewSet()
	for _, ev := range events {
		if ev.Kind == kind {
			s.Merge(ev.Range)
		}
	}
	return s
}

// TestEngine_S1_RangeDownloadSmallFile exercises a small ranged download
// end to end and checks mass conservation between pull and push totals.
func TestEngine_S1_RangeDownloadSmallFile(t *testing.T) {
	data := sequence(3072)
	puller := testutil.NewMemPuller(data, 400)
	pusher := testutil.NewMemPusher(len(data))

	opts := DefaultOptions()
	opts.Chunks = []progress.ByteRange{{Start: 0, End: 3072}}
	opts.Threads = 32
	opts.MinChunk = 1

	e := New(puller, pusher, opts)
	events := drainEvents(t, e.EventStream())
	require.NoError(t, e.Join())

	pullMerged := mergedRanges(events, EventPullProgress)
	pushMerged := mergedRanges(events, EventPushProgress)

	want := progress.NewSet(progress.ByteRange{Start: 0, End: 3072})
	assert.Equal(t, want.Total(), pullMerged.Total(), "merged PullProgress total")
	assert.Equal(t, want.Total(), pushMerged.Total(), "merged PushProgress total")
	assert.True(t, bytes.Equal(pusher.Bytes(), data), "sink content does not match the source sequence")
	assert.True(t, pusher.Flushed(), "expected pusher to be flushed")
}

// TestEngine_S2_SequentialDownload checks that the single-worker engine
// over a non-range stream satisfies the same mass-conservation
// invariants as the ranged multi-worker case.
func TestEngine_S2_SequentialDownload(t *testing.T) {
	data := sequence(3072)
	puller := testutil.NewMemPuller(data, 777) // irregular chunk size, no range capability exercised
	pusher := testutil.NewMemPusher(len(data))

	opts := DefaultOptions()
	opts.Size = 3072

	e := NewSingle(puller, pusher, opts)
	events := drainEvents(t, e.EventStream())
	require.NoError(t, e.Join())

	pullMerged := mergedRanges(events, EventPullProgress)
	pushMerged := mergedRanges(events, EventPushProgress)
	assert.EqualValues(t, 3072, pullMerged.Total())
	assert.EqualValues(t, 3072, pushMerged.Total())
	assert.True(t, bytes.Equal(pusher.Bytes(), data), "sink content does not match the source sequence")
}

// TestEngine_S3_ResumeCorrectness checks that a second run seeded with
// chunks=[2560..3072] and a pusher pre-populated with the first 2560
// bytes reproduces the full original content.
func TestEngine_S3_ResumeCorrectness(t *testing.T) {
	data := sequence(3072)
	puller := testutil.NewMemPuller(data, 256)
	pusher := testutil.NewMemPusher(len(data))

	// Simulate the first 2560 bytes already present (the rest, i.e. the
	// "deleted last 512 bytes", is still zeroed in the sink).
	for i := 0; i < 2560; i++ {
		pusher.Push(context.Background(), progress.ByteRange{Start: uint64(i), End: uint64(i + 1)}, []byte{data[i]})
	}

	opts := DefaultOptions()
	opts.Chunks = []progress.ByteRange{{Start: 2560, End: 3072}}
	opts.Threads = 4
	opts.MinChunk = 1

	e := New(puller, pusher, opts)
	drainEvents(t, e.EventStream())
	require.NoError(t, e.Join())

	assert.True(t, bytes.Equal(pusher.Bytes(), data), "resumed content does not match the original full sequence")
}

func TestEngine_Cancel_StopsEmittingPromptly(t *testing.T) {
	data := sequence(1 << 20)
	puller := testutil.NewMemPuller(data, 4096).WithDelay(5 * time.Millisecond)
	pusher := testutil.NewMemPusher(len(data))

	opts := DefaultOptions()
	opts.Chunks = []progress.ByteRange{{Start: 0, End: uint64(len(data))}}
	opts.Threads = 2
	opts.MinChunk = 1

	e := New(puller, pusher, opts)
	time.Sleep(20 * time.Millisecond)
	e.Cancel()

	done := make(chan struct{})
	go func() {
		for range e.EventStream() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not close promptly after Cancel")
	}
	assert.True(t, e.IsAborted(), "expected IsAborted() = true after Cancel")
}

// TestEngine_HealthMonitor_CancelsSlowWorker verifies that a worker
// running well below the mean speed gets its connection canceled (an
// EventWorkerSlow fires) and that the sink still ends up byte-exact.
func TestEngine_HealthMonitor_CancelsSlowWorker(t *testing.T) {
	const total = 2000
	data := sequence(total)
	puller := testutil.NewMemPuller(data, 50)
	slow := slowBelowHalfPuller{MemPuller: puller, threshold: total / 2, delay: 15 * time.Millisecond}
	pusher := testutil.NewMemPusher(total)

	opts := DefaultOptions()
	opts.Chunks = []progress.ByteRange{{Start: 0, End: total}}
	opts.Threads = 2
	opts.MinChunk = total / 2
	opts.HealthCheckInterval = 20 * time.Millisecond
	opts.SlowWorkerGracePeriod = 10 * time.Millisecond
	opts.SpeedWindow = 30 * time.Millisecond
	opts.SlowWorkerThreshold = 0.5

	e := New(&slow, pusher, opts)
	events := drainEvents(t, e.EventStream())
	require.NoError(t, e.Join())
	assert.True(t, bytes.Equal(pusher.Bytes(), data), "sink content does not match the source sequence")

	sawSlow := false
	for _, ev := range events {
		if ev.Kind == EventWorkerSlow {
			sawSlow = true
		}
	}
	assert.True(t, sawSlow, "expected at least one EventWorkerSlow for the deliberately-slow lane")
}

// TestEngine_SetThreads_ShrinkStopsExcessWorkers verifies that shrinking
// actually retires the evicted pull-worker goroutines instead of only
// updating the queue's bookkeeping — ActiveWorkerCount must drop, not just
// the running-task count.
func TestEngine_SetThreads_ShrinkStopsExcessWorkers(t *testing.T) {
	data := sequence(1 << 20)
	puller := testutil.NewMemPuller(data, 4096).WithDelay(5 * time.Millisecond)
	pusher := testutil.NewMemPusher(len(data))

	opts := DefaultOptions()
	opts.Chunks = []progress.ByteRange{{Start: 0, End: uint64(len(data))}}
	opts.Threads = 4
	opts.MinChunk = 1

	e := New(puller, pusher, opts)
	time.Sleep(20 * time.Millisecond)

	require.Equal(t, 4, e.ActiveWorkerCount(), "active worker count before shrink")

	e.SetThreads(1)

	deadline := time.After(2 * time.Second)
	for e.ActiveWorkerCount() > 1 {
		select {
		case <-deadline:
			t.Fatalf("active worker count did not drop to 1 after shrink, still %d", e.ActiveWorkerCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	e.Cancel()
	for range e.EventStream() {
	}
	require.NoError(t, e.Join())
}

// slowBelowHalfPuller wraps MemPuller, adding a per-chunk delay to streams
// opened for ranges starting below threshold.
type slowBelowHalfPuller struct {
	*testutil.MemPuller
	threshold uint64
	delay     time.Duration
}

func (p *slowBelowHalfPuller) Pull(ctx context.Context, r *progress.ByteRange) (transfer.Stream, error) {
	if r != nil && r.Start < p.threshold {
		return p.MemPuller.WithDelay(p.delay).Pull(ctx, r)
	}
	return p.MemPuller.Pull(ctx, r)
}

func (p *slowBelowHalfPuller) Clone() transfer.Puller { return p }
