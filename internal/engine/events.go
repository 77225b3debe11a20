// Package engine implements the multi-worker and single-worker download
// engines: a work-stealing pool of pull workers feeding a bounded push
// queue, emitting a typed event stream the caller merges into resume
// state. Built around the Puller/Pusher capability interfaces so the
// same engine serves any transfer.Puller and transfer.Pusher pair.
package engine

import (
	"time"

	"github.com/surge-downloader/surge/internal/progress"
)

// EventKind tags which variant of Event is populated.
type EventKind int

const (
	EventPulling EventKind = iota
	EventPullProgress
	EventPullError
	EventPullTimeout
	EventPushing
	EventPushProgress
	EventPushError
	EventFlushError
	EventFinished
	EventAborted
	// EventWorkerSlow fires when the health monitor cancels a worker's
	// current connection for running well below the mean worker speed;
	// the worker reopens a fresh connection for its remaining range.
	EventWorkerSlow
)

func (k EventKind) String() string {
	switch k {
	case EventPulling:
		return "Pulling"
	case EventPullProgress:
		return "PullProgress"
	case EventPullError:
		return "PullError"
	case EventPullTimeout:
		return "PullTimeout"
	case EventPushing:
		return "Pushing"
	case EventPushProgress:
		return "PushProgress"
	case EventPushError:
		return "PushError"
	case EventFlushError:
		return "FlushError"
	case EventFinished:
		return "Finished"
	case EventAborted:
		return "Aborted"
	case EventWorkerSlow:
		return "WorkerSlow"
	default:
		return "Unknown"
	}
}

// Event is the tagged variant emitted on the engine's event stream. WorkerID identifies
// the worker for every kind except FlushError, which carries none.
type Event struct {
	Kind     EventKind
	WorkerID int
	Range    progress.ByteRange
	Err      error
	At       time.Time
}

func pulling(id int) Event          { return Event{Kind: EventPulling, WorkerID: id} }
func pullProgress(id int, r progress.ByteRange) Event {
	return Event{Kind: EventPullProgress, WorkerID: id, Range: r}
}
func pullError(id int, err error) Event { return Event{Kind: EventPullError, WorkerID: id, Err: err} }
func pullTimeout(id int) Event          { return Event{Kind: EventPullTimeout, WorkerID: id} }
func pushing(id int) Event              { return Event{Kind: EventPushing, WorkerID: id} }
func pushProgress(id int, r progress.ByteRange) Event {
	return Event{Kind: EventPushProgress, WorkerID: id, Range: r}
}
func pushError(id int, err error) Event { return Event{Kind: EventPushError, WorkerID: id, Err: err} }
func flushError(err error) Event        { return Event{Kind: EventFlushError, Err: err} }
func finished(id int) Event             { return Event{Kind: EventFinished, WorkerID: id} }
func aborted(id int) Event              { return Event{Kind: EventAborted, WorkerID: id} }
func workerSlow(id int) Event           { return Event{Kind: EventWorkerSlow, WorkerID: id} }
