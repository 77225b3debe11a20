// Package filesink implements transfer.Pusher over a seek-and-write
// *os.File: file.WriteAt(buf, offset) at the point of each successful
// read, with preallocate-then-resume file handling, as a standalone
// Pusher the engine depends on only through the interface.
package filesink

import (
	"context"
	"fmt"
	"os"

	"github.com/surge-downloader/surge/internal/progress"
)

// FileSink writes pushed ranges directly at their byte offset in an
// *os.File opened for read-write. Flush fsyncs to disk.
type FileSink struct {
	file *os.File
}

// Open opens (creating if necessary) the file at path for read-write and
// sets its length to size — idempotent for an existing file already of
// the correct length.
func Open(path string, size uint64) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filesink: open: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("filesink: truncate: %w", err)
	}
	return &FileSink{file: f}, nil
}

func (s *FileSink) Push(ctx context.Context, r progress.ByteRange, data []byte) error {
	if _, err := s.file.WriteAt(data, int64(r.Start)); err != nil {
		return &pushError{err: err, data: data}
	}
	return nil
}

func (s *FileSink) Flush(ctx context.Context) error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("filesink: sync: %w", err)
	}
	return nil
}

// Close releases the underlying file handle. Callers should Flush before
// Close to guarantee durability.
func (s *FileSink) Close() error {
	return s.file.Close()
}

// pushError carries the data given to the failed Push back to the caller
// so retry can resend it without a fresh copy.
type pushError struct {
	err  error
	data []byte
}

func (e *pushError) Error() string { return fmt.Sprintf("filesink: write: %v", e.err) }
func (e *pushError) Unwrap() error { return e.err }

// RejectedBytes returns the full data slice given to a failed Push (even
// if part of it was written), so the caller can retry without recopying it.
func RejectedBytes(err error) ([]byte, bool) {
	pe, ok := err.(*pushError)
	if !ok {
		return nil, false
	}
	return pe.data, true
}
