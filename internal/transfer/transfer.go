// Package transfer defines the Puller and Pusher capability interfaces the
// engine depends on. Concrete byte sources (an HTTP range client, a fixed
// in-memory buffer) and sinks (seek-and-write file, in-memory buffer) live
// in sibling packages and compose against these interfaces rather than
// inheriting from a base type, favoring small composed capabilities
// over deep hierarchies.
package transfer

import (
	"context"
	"io"
	"time"

	"github.com/surge-downloader/surge/internal/progress"
)

// Error is returned by Puller and Pusher operations. RetryAfter, when
// non-zero, is the duration the caller should wait before retrying
// (e.g. parsed from a Retry-After header); Irrecoverable marks an error
// that invalidates the current stream (should be reopened fresh, or
// should abort the whole run) rather than one that is transient.
type Error struct {
	Err           error
	RetryAfter    time.Duration
	Irrecoverable bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Chunk is one piece of a byte stream delivered by a Puller.
type Chunk struct {
	Data []byte
}

// Stream is a lazy, possibly-infinite sequence of byte chunks. Next
// returns io.EOF when the stream ends normally. It may also return a
// *Error (transient or irrecoverable) at most once, after which the
// stream is done. Close releases any underlying connection/resource and
// must be safe to call after an error or EOF.
type Stream interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}

// Puller is a byte source, polymorphic over range capability. A nil
// *progress.ByteRange selects the whole resource (a non-range pull);
// otherwise it requests exactly that half-open range. Implementations
// must be safe to Clone and used concurrently from independent clones.
type Puller interface {
	Pull(ctx context.Context, r *progress.ByteRange) (Stream, error)
	Clone() Puller
}

// Pusher is a byte sink. Push is idempotent with respect to the same
// (range, bytes) pair — re-delivering already-written bytes at the same
// offset must not corrupt the sink. Flush finalizes all buffered writes;
// it is called after every accepted range has been pushed, and called
// again after a failure until it succeeds or the run is canceled.
type Pusher interface {
	Push(ctx context.Context, r progress.ByteRange, data []byte) error
	Flush(ctx context.Context) error
}

// EnsureReadAll drains a stream into dst for callers that want to
// materialize a whole pull up front. Neither engine nor the HTTP puller
// uses it; they stream chunk by chunk.
func EnsureReadAll(ctx context.Context, s Stream, dst io.Writer) error {
	for {
		c, err := s.Next(ctx)
		if len(c.Data) > 0 {
			if _, werr := dst.Write(c.Data); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
