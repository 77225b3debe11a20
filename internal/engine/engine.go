package engine

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/queue"
	"github.com/surge-downloader/surge/internal/task"
	"github.com/surge-downloader/surge/internal/transfer"
)

// Engine is the multi-worker engine: a work-stealing pool of pull
// workers feeding a bounded push queue on a dedicated push goroutine,
// emitting a single event stream the caller consumes.
type Engine struct {
	puller transfer.Puller
	pusher transfer.Pusher
	opts   Options

	ctx        context.Context
	cancelFunc context.CancelFunc
	aborted    atomic.Bool

	q      *queue.TaskQueue
	events chan Event
	pushCh chan pushItem

	mu           sync.Mutex
	nextWorkerID int

	pullWg   sync.WaitGroup
	pushDone chan struct{}
	doneCh   chan struct{}

	activeMu    sync.Mutex
	activeTasks map[int]*activeTask

	// cancelMu guards workerCancels, a per-worker stop switch independent
	// of activeTask.cancel (which only cancels a worker's current
	// connection, not the worker itself). Kept separate from mu: Spawn is
	// invoked synchronously from inside queue.TaskQueue.SetThreads, and
	// Engine.SetThreads below already holds mu when it calls that.
	cancelMu      sync.Mutex
	workerCancels map[int]context.CancelFunc
}

type pushItem struct {
	workerID int
	r        progress.ByteRange
	data     []byte
}

// activeTask tracks the currently-open connection for one pull worker, for
// the slow-worker health monitor: per-worker EMA-smoothed speed over a
// sliding window, and a cancel func the monitor can call to force that
// worker to reopen its connection without touching any other worker or
// the run as a whole (EMA over a 2s window, mean-relative threshold,
// grace period before a task is eligible for cancellation).
type activeTask struct {
	cancel    context.CancelFunc
	startTime time.Time

	mu          sync.Mutex
	speed       float64
	windowStart time.Time
	windowBytes uint64
}

func (at *activeTask) recordBytes(n uint64, alpha float64, window time.Duration) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.windowBytes += n
	elapsed := time.Since(at.windowStart).Seconds()
	if elapsed >= window.Seconds() {
		recent := float64(at.windowBytes) / elapsed
		if at.speed == 0 {
			at.speed = recent
		} else {
			at.speed = (1-alpha)*at.speed + alpha*recent
		}
		at.windowBytes = 0
		at.windowStart = time.Now()
	}
}

func (at *activeTask) getSpeed() float64 {
	at.mu.Lock()
	defer at.mu.Unlock()
	return at.speed
}

// WorkerStat is a point-in-time per-worker speed sample, surfaced by
// Stats() for a result handle to render (e.g. a "ls"/"status" table).
type WorkerStat struct {
	WorkerID int
	Speed    float64 // bytes/sec, EMA-smoothed
}

// Stats returns the current EMA speed of every actively-pulling worker.
func (e *Engine) Stats() []WorkerStat {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	stats := make([]WorkerStat, 0, len(e.activeTasks))
	for id, at := range e.activeTasks {
		stats = append(stats, WorkerStat{WorkerID: id, Speed: at.getSpeed()})
	}
	return stats
}

// New constructs an Engine and immediately starts the push worker and
// the initial set of pull workers.
func New(puller transfer.Puller, pusher transfer.Pusher, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		puller:        puller,
		pusher:        pusher,
		opts:          opts,
		ctx:           ctx,
		cancelFunc:    cancel,
		q:             queue.New(),
		events:        make(chan Event, 256),
		pushCh:        make(chan pushItem, maxInt(opts.PushQueueCap, 1)),
		pushDone:      make(chan struct{}),
		doneCh:        make(chan struct{}),
		activeTasks:   make(map[int]*activeTask),
		workerCancels: make(map[int]context.CancelFunc),
	}

	e.q.Enqueue(opts.effectiveChunks())

	go e.runPushWorker()

	e.q.SetThreads(maxInt(opts.Threads, 1), opts.MinChunk, &e.nextWorkerID, e)

	if opts.HealthCheckInterval > 0 {
		go e.monitorHealth()
	}

	go e.awaitCompletion()

	return e
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// EventStream returns the channel of Events. It closes once join()
// would return, after Finished/Aborted has been sent for every worker and
// flush has completed (or failed).
func (e *Engine) EventStream() <-chan Event {
	return e.events
}

// Cancel signals every worker to stop at its next suspension point. It
// is idempotent.
func (e *Engine) Cancel() {
	e.aborted.Store(true)
	e.cancelFunc()
}

// IsAborted reports whether Cancel has been called.
func (e *Engine) IsAborted() bool {
	return e.aborted.Load()
}

// SetThreads reconfigures the worker count at runtime. Shrinking actually
// stops the evicted pull workers' goroutines (via their per-worker
// cancellation context, not just the queue's running/waiting bookkeeping)
// so no worker keeps pulling a task the queue has already handed back to
// waiting, where a peer could steal it and pull the same range twice.
func (e *Engine) SetThreads(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok, evicted := e.q.SetThreads(n, e.opts.MinChunk, &e.nextWorkerID, e)
	for _, id := range evicted {
		e.stopWorker(id)
	}
	return ok
}

// stopWorker cancels the worker-scoped context Spawn created for id, if
// that worker is still running. The pull worker observes this at its next
// loop check, and immediately on its current in-flight stream too, since
// each pull's per-task context derives from the worker context — and
// exits without touching its task again.
func (e *Engine) stopWorker(id int) {
	e.cancelMu.Lock()
	cancel, ok := e.workerCancels[id]
	e.cancelMu.Unlock()
	if ok {
		cancel()
	}
}

// Join blocks until the push worker has exited (the queue drained and
// flush ran, or the run aborted).
func (e *Engine) Join() error {
	<-e.doneCh
	return nil
}

// Spawn implements queue.Executor: it starts one pull worker owning t,
// under a worker-scoped context derived from the engine's so SetThreads
// can stop this one worker without affecting any other.
func (e *Engine) Spawn(workerID int, t *task.Task) {
	workerCtx, cancel := context.WithCancel(e.ctx)
	e.cancelMu.Lock()
	e.workerCancels[workerID] = cancel
	e.cancelMu.Unlock()

	e.pullWg.Add(1)
	go func() {
		defer e.pullWg.Done()
		defer func() {
			e.cancelMu.Lock()
			delete(e.workerCancels, workerID)
			e.cancelMu.Unlock()
			cancel()
		}()
		e.pullWorker(workerID, t, workerCtx)
	}()
}

// ActiveWorkerCount returns the number of pull-worker goroutines currently
// spawned and not yet exited.
func (e *Engine) ActiveWorkerCount() int {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	return len(e.workerCancels)
}

func (e *Engine) awaitCompletion() {
	e.pullWg.Wait()
	close(e.pushCh)
	<-e.pushDone
	close(e.events)
	close(e.doneCh)
}

// pullWorker runs worker id against t until the task (and anything it can
// steal) is drained, the engine is canceled, or workerCtx is canceled —
// which happens only via stopWorker, when SetThreads shrinks this worker
// away. In the shrink case the worker must stop touching current
// immediately: the queue has already handed it back to waiting (or it was
// still registered as running and SetThreads removed it), so continuing
// to pull it here would race a peer that steals or is handed the same
// task.
func (e *Engine) pullWorker(id int, t *task.Task, workerCtx context.Context) {
	current := t
	for {
		if workerCtx.Err() != nil {
			if e.ctx.Err() != nil {
				e.emit(aborted(id))
			}
			return
		}

		snapshot := current.Snapshot()
		if snapshot.Empty() {
			if stolen := e.q.Steal(id, e.opts.MinChunk); stolen != nil {
				current = stolen
				continue
			}
			break
		}

		at := e.registerActive(id)
		runCtx, runCancel := context.WithCancel(workerCtx)
		at.cancel = runCancel

		e.emit(pulling(id))
		stream, err := e.openStream(id, runCtx, &snapshot)
		if err != nil {
			// openStream reports cancellation as a nil stream (handled
			// below) and returns no error; stop if one ever appears.
			runCancel()
			e.unregisterActive(id)
			return
		}
		if stream == nil {
			// Engine canceled mid-backoff, this worker was shrink-stopped,
			// or health-canceled: reopen against a fresh snapshot unless
			// the worker (or whole engine) is done.
			runCancel()
			e.unregisterActive(id)
			if workerCtx.Err() != nil {
				if e.ctx.Err() != nil {
					e.emit(aborted(id))
				}
				return
			}
			continue
		}

		e.pullChunks(id, current, stream, runCtx, at)
		runCancel()
		e.unregisterActive(id)
	}
	e.emit(finished(id))
}

func (e *Engine) registerActive(id int) *activeTask {
	at := &activeTask{startTime: time.Now(), windowStart: time.Now()}
	e.activeMu.Lock()
	e.activeTasks[id] = at
	e.activeMu.Unlock()
	return at
}

func (e *Engine) unregisterActive(id int) {
	e.activeMu.Lock()
	delete(e.activeTasks, id)
	e.activeMu.Unlock()
}

// monitorHealth periodically cancels workers running well below the mean
// worker speed, forcing them to reopen a (hopefully faster) connection for
// their remaining range.
func (e *Engine) monitorHealth() {
	ticker := time.NewTicker(e.opts.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.checkWorkerHealth()
		}
	}
}

func (e *Engine) checkWorkerHealth() {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	if len(e.activeTasks) == 0 {
		return
	}

	var total float64
	var count int
	for _, at := range e.activeTasks {
		if s := at.getSpeed(); s > 0 {
			total += s
			count++
		}
	}
	if count == 0 {
		return
	}
	mean := total / float64(count)

	now := time.Now()
	for id, at := range e.activeTasks {
		if now.Sub(at.startTime) < e.opts.SlowWorkerGracePeriod {
			continue
		}
		speed := at.getSpeed()
		if speed > 0 && speed < e.opts.SlowWorkerThreshold*mean {
			e.emit(workerSlow(id))
			at.cancel()
		}
	}
}

// openStream retries opening a stream until it succeeds or ctx is done
// (either the engine was canceled, or the health monitor canceled this
// worker's run). A nil, nil return means done before any stream opened.
func (e *Engine) openStream(id int, ctx context.Context, r *progress.ByteRange) (transfer.Stream, error) {
	for {
		stream, err := e.puller.Pull(ctx, r)
		if err == nil {
			return stream, nil
		}
		if ctx.Err() != nil {
			return nil, nil
		}
		e.emit(pullError(id, err))

		wait := e.opts.RetryGap
		if terr, ok := err.(*transfer.Error); ok && terr.RetryAfter > 0 {
			wait = terr.RetryAfter
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}
	}
}

// pullChunks drains stream into the push queue until the task is drained,
// the stream ends, a timeout/irrecoverable error forces a reopen, the
// health monitor or a SetThreads shrink cancels ctx, or the whole engine
// is canceled.
func (e *Engine) pullChunks(id int, t *task.Task, stream transfer.Stream, ctx context.Context, at *activeTask) {
	defer stream.Close()

	for {
		select {
		case <-e.ctx.Done():
			e.emit(aborted(id))
			return
		default:
		}
		if ctx.Err() != nil {
			return // health- or shrink-canceled: caller decides reopen vs. stop
		}

		observedStart := t.Snapshot().Start

		chunkCtx := ctx
		var cancelChunk context.CancelFunc
		if e.opts.PullTimeout > 0 {
			chunkCtx, cancelChunk = context.WithTimeout(ctx, e.opts.PullTimeout)
		}
		chunk, err := stream.Next(chunkCtx)
		if cancelChunk != nil {
			cancelChunk()
		}

		if err != nil {
			if e.ctx.Err() != nil {
				e.emit(aborted(id))
				return
			}
			if ctx.Err() != nil {
				return // health-canceled: reopen a fresh connection
			}
			if chunkCtx.Err() == context.DeadlineExceeded {
				e.emit(pullTimeout(id))
				return // reopen with a fresh snapshot
			}
			if err == io.EOF {
				return // reopen with a fresh snapshot
			}
			e.emit(pullError(id, err))
			wait := e.opts.RetryGap
			irrecoverable := false
			if terr, ok := err.(*transfer.Error); ok {
				if terr.RetryAfter > 0 {
					wait = terr.RetryAfter
				}
				irrecoverable = terr.Irrecoverable
			}
			if irrecoverable {
				return // reopen with a fresh snapshot
			}
			select {
			case <-e.ctx.Done():
				e.emit(aborted(id))
				return
			case <-time.After(wait):
			}
			continue
		}

		if len(chunk.Data) == 0 {
			continue
		}

		advanced, advErr := t.SafeAdvance(observedStart, uint64(len(chunk.Data)))
		if advErr != nil {
			// Stale: a peer already advanced past this point (e.g. after a
			// steal); drop the bytes and reopen against the current task.
			return
		}

		n := advanced.Len()
		data := chunk.Data
		if uint64(len(data)) > n {
			data = data[:n]
		}

		window := e.opts.SpeedWindow
		if window <= 0 {
			window = 2 * time.Second
		}
		at.recordBytes(n, e.opts.SpeedEMAAlpha, window)

		snapshot := t.Snapshot()
		if advanced.End == snapshot.End || snapshot.Empty() {
			e.q.CancelTask(t, id)
		}

		e.emit(pullProgress(id, advanced))

		select {
		case e.pushCh <- pushItem{workerID: id, r: advanced, data: data}:
		case <-e.ctx.Done():
			e.emit(aborted(id))
			return
		}
	}
}

func (e *Engine) emit(ev Event) {
	ev.At = time.Now()
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
		// Best effort once canceled: try a non-blocking send so the
		// Aborted/Finished tail isn't silently dropped if there's room.
		select {
		case e.events <- ev:
		default:
		}
	}
}

// runPushWorker is the single push thread: it
// dequeues (id, range, bytes), calls pusher.Push, emits PushProgress on
// success or PushError and retries after RetryGap on failure. When pushCh
// closes it calls pusher.Flush, retrying the same way and emitting
// FlushError on persistent failure.
func (e *Engine) runPushWorker() {
	defer close(e.pushDone)

	for item := range e.pushCh {
		e.emit(pushing(item.workerID))
		data := item.data
		for {
			err := e.pusher.Push(e.ctx, item.r, data)
			if err == nil {
				e.emit(pushProgress(item.workerID, item.r))
				break
			}
			e.emit(pushError(item.workerID, err))
			wait := e.opts.RetryGap
			if terr, ok := err.(*transfer.Error); ok && terr.RetryAfter > 0 {
				wait = terr.RetryAfter
			}
			select {
			case <-e.ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}

	for {
		err := e.pusher.Flush(e.ctx)
		if err == nil {
			return
		}
		e.emit(flushError(err))
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(e.opts.RetryGap):
		}
	}
}
