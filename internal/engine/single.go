package engine

import (
	"context"
	"io"
	"time"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/transfer"
)

// SingleEngine is the single-worker engine used when the server can't
// support ranged, concurrent fetches: one pull worker over a non-range
// stream, a local downloaded counter, chunks handed to the push worker
// in arrival order, built around the same Puller/Pusher interfaces the
// multi-worker engine uses.
type SingleEngine struct {
	puller transfer.Puller
	pusher transfer.Pusher
	opts   Options

	ctx        context.Context
	cancelFunc context.CancelFunc

	events chan Event
	doneCh chan struct{}
}

// NewSingle starts the single-worker engine and returns immediately; the
// download runs on a background goroutine.
func NewSingle(puller transfer.Puller, pusher transfer.Pusher, opts Options) *SingleEngine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &SingleEngine{
		puller:     puller,
		pusher:     pusher,
		opts:       opts,
		ctx:        ctx,
		cancelFunc: cancel,
		events:     make(chan Event, 64),
		doneCh:     make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *SingleEngine) EventStream() <-chan Event { return e.events }

func (e *SingleEngine) Cancel() { e.cancelFunc() }

func (e *SingleEngine) Join() error {
	<-e.doneCh
	return nil
}

const singleWorkerID = 0

func (e *SingleEngine) run() {
	defer close(e.doneCh)
	defer close(e.events)

	var downloaded uint64
	// A resumed single-worker run seeds downloaded from the caller's
	// starting chunk, if any, as a best-effort position resume.
	if len(e.opts.Chunks) == 1 {
		downloaded = e.opts.Chunks[0].Start
	}

	for {
		if e.ctx.Err() != nil {
			e.emitS(aborted(singleWorkerID))
			return
		}

		e.emitS(pulling(singleWorkerID))
		stream, opened := e.openStream()
		if !opened {
			e.emitS(aborted(singleWorkerID))
			return
		}

		restart, done := e.drain(stream, &downloaded)
		stream.Close()
		if done {
			e.flush()
			e.emitS(finished(singleWorkerID))
			return
		}
		if restart {
			downloaded = 0
		}
	}
}

func (e *SingleEngine) openStream() (transfer.Stream, bool) {
	for {
		stream, err := e.puller.Pull(e.ctx, nil)
		if err == nil {
			return stream, true
		}
		e.emitS(pullError(singleWorkerID, err))

		wait := e.opts.RetryGap
		if terr, ok := err.(*transfer.Error); ok && terr.RetryAfter > 0 {
			wait = terr.RetryAfter
		}
		select {
		case <-e.ctx.Done():
			return nil, false
		case <-time.After(wait):
		}
	}
}

// drain reads chunks off stream until EOF, timeout, or an irrecoverable
// error. done=true means the whole transfer finished; restart=true means
// the next openStream should begin from byte 0 because the error was
// flagged irrecoverable.
func (e *SingleEngine) drain(stream transfer.Stream, downloaded *uint64) (restart, done bool) {
	for {
		select {
		case <-e.ctx.Done():
			return false, false
		default:
		}

		chunkCtx := e.ctx
		var cancelChunk context.CancelFunc
		if e.opts.PullTimeout > 0 {
			chunkCtx, cancelChunk = context.WithTimeout(e.ctx, e.opts.PullTimeout)
		}
		chunk, err := stream.Next(chunkCtx)
		if cancelChunk != nil {
			cancelChunk()
		}

		if len(chunk.Data) > 0 {
			r := progress.ByteRange{Start: *downloaded, End: *downloaded + uint64(len(chunk.Data))}
			*downloaded = r.End
			e.emitS(pullProgress(singleWorkerID, r))

			select {
			case <-e.ctx.Done():
				return false, false
			default:
			}
			e.pushOne(r, chunk.Data)
		}

		if err == nil {
			continue
		}
		if err == io.EOF {
			return false, true
		}
		if chunkCtx.Err() == context.DeadlineExceeded {
			e.emitS(pullTimeout(singleWorkerID))
			return false, false
		}
		irrecoverable := false
		wait := e.opts.RetryGap
		if terr, ok := err.(*transfer.Error); ok {
			irrecoverable = terr.Irrecoverable
			if terr.RetryAfter > 0 {
				wait = terr.RetryAfter
			}
		}
		e.emitS(pullError(singleWorkerID, err))
		if irrecoverable {
			return true, false
		}
		select {
		case <-e.ctx.Done():
			return false, false
		case <-time.After(wait):
		}
		return false, false
	}
}

// pushOne performs a direct, synchronous push with retry, mirroring the
// multi-worker engine's push worker semantics without a separate queue
// (the single-worker path has exactly one producer).
func (e *SingleEngine) pushOne(r progress.ByteRange, data []byte) {
	e.emitS(pushing(singleWorkerID))
	for {
		err := e.pusher.Push(e.ctx, r, data)
		if err == nil {
			e.emitS(pushProgress(singleWorkerID, r))
			return
		}
		e.emitS(pushError(singleWorkerID, err))
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

func (e *SingleEngine) flush() {
	for {
		err := e.pusher.Flush(e.ctx)
		if err == nil {
			return
		}
		e.emitS(flushError(err))
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(e.opts.RetryGap):
		}
	}
}

func (e *SingleEngine) emitS(ev Event) {
	ev.At = time.Now()
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
		select {
		case e.events <- ev:
		default:
		}
	}
}
