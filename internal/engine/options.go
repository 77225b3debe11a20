package engine

import (
	"time"

	"github.com/surge-downloader/surge/internal/progress"
)

// Options configures an Engine or SingleEngine run.
type Options struct {
	// Chunks is a sorted non-overlapping list of ranges to fetch; empty
	// means the whole resource, which requires Size to be set so the
	// engine can seed a single [0, Size) task.
	Chunks        []progress.ByteRange
	Size          uint64
	Threads       int
	PushQueueCap  int
	RetryGap      time.Duration
	PullTimeout   time.Duration
	MinChunk      uint64
	// MaxStealDepth is carried in Options but neither engine reads it:
	// speculative splitting is not limited by depth, whatever its value.
	MaxStealDepth int

	// HealthCheckInterval is how often the slow-worker health monitor
	// samples speeds. 0 disables health monitoring entirely.
	HealthCheckInterval time.Duration
	// SlowWorkerGracePeriod is how long a task runs before it becomes
	// eligible for health-based cancellation.
	SlowWorkerGracePeriod time.Duration
	// SlowWorkerThreshold is the fraction of mean worker speed below
	// which a task is considered slow (e.g. 0.5 means "under half the
	// mean").
	SlowWorkerThreshold float64
	// SpeedEMAAlpha is the smoothing factor for the per-task EMA speed
	// estimate; higher weighs recent samples more heavily.
	SpeedEMAAlpha float64
	// SpeedWindow is the sliding-window duration each speed sample
	// averages over before feeding the EMA. 0 defaults to 2s.
	SpeedWindow time.Duration
}

// effectiveChunks returns Chunks, or [0, Size) if Chunks is empty and
// Size is known.
func (o Options) effectiveChunks() []progress.ByteRange {
	if len(o.Chunks) > 0 {
		return o.Chunks
	}
	if o.Size > 0 {
		return []progress.ByteRange{{Start: 0, End: o.Size}}
	}
	return nil
}

// DefaultOptions returns sane defaults: four workers, a 64 KiB minimum
// chunk, a 500ms retry gap, and a generous inter-chunk timeout.
func DefaultOptions() Options {
	return Options{
		Threads:               4,
		PushQueueCap:          64,
		RetryGap:              500 * time.Millisecond,
		PullTimeout:           30 * time.Second,
		MinChunk:              64 * 1024,
		HealthCheckInterval:   2 * time.Second,
		SlowWorkerGracePeriod: 3 * time.Second,
		SlowWorkerThreshold:   0.5,
		SpeedEMAAlpha:         0.3,
		SpeedWindow:           2 * time.Second,
	}
}
