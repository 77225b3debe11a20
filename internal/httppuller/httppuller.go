// Package httppuller implements transfer.Puller over plain HTTP range
// requests: Range header construction, 429 handling, and retry
// classification, exposed through the decoupled Stream abstraction so
// the same puller serves both the multi-worker and single-worker
// engines.
package httppuller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/transfer"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Puller pulls byte ranges (or the whole resource) from finalURL over
// HTTP. It is safe to Clone and use the clones concurrently: client,
// finalURL and userAgent are immutable, and limiter is a shared pointer
// whose own state is synchronized internally.
type Puller struct {
	client    *http.Client
	finalURL  string
	userAgent string
	limiter   *rateLimiter
}

// New returns a Puller for finalURL. client may be shared across
// Pullers; if nil, a client tuned for long-lived transfers is created.
func New(client *http.Client, finalURL string) *Puller {
	if client == nil {
		client = NewClient()
	}
	return &Puller{client: client, finalURL: finalURL, userAgent: defaultUserAgent, limiter: &rateLimiter{}}
}

// NewClient returns an http.Client tuned for range-request transfers:
// no overall per-request timeout (streaming bodies are long-lived), but a
// 20s response-header timeout and idle-connection tuning on the transport.
func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 20 * time.Second,
		},
	}
}

func (p *Puller) Clone() transfer.Puller {
	return &Puller{client: p.client, finalURL: p.finalURL, userAgent: p.userAgent, limiter: p.limiter}
}

// Pull opens a GET request against finalURL. When r is non-nil it sends
// Range: bytes=<start>-<end-1> and requires a 206 response — a 200 is
// treated as an irrecoverable error since the caller should have
// selected the single-worker engine. When r is nil it performs a plain
// GET and accepts 200 (used by the
// single-worker engine).
func (p *Puller) Pull(ctx context.Context, r *progress.ByteRange) (transfer.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.finalURL, nil)
	if err != nil {
		return nil, &transfer.Error{Err: err, Irrecoverable: true}
	}
	req.Header.Set("User-Agent", p.userAgent)
	if r != nil {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &transfer.Error{Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := p.limiter.handle429(resp)
		resp.Body.Close()
		return nil, &transfer.Error{Err: fmt.Errorf("httppuller: rate limited (429)"), RetryAfter: wait}
	}
	p.limiter.reportSuccess()

	if r != nil {
		if resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return nil, &transfer.Error{
				Err:           fmt.Errorf("httppuller: expected 206, got %d", resp.StatusCode),
				Irrecoverable: true,
			}
		}
	} else if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &transfer.Error{Err: fmt.Errorf("httppuller: unexpected status %d", resp.StatusCode)}
	}

	return &httpStream{body: resp.Body, chunkSize: 64 * 1024}, nil
}

type httpStream struct {
	body      io.ReadCloser
	chunkSize int
}

func (s *httpStream) Next(ctx context.Context) (transfer.Chunk, error) {
	buf := make([]byte, s.chunkSize)
	n, err := s.body.Read(buf)
	if n > 0 {
		chunk := transfer.Chunk{Data: buf[:n]}
		if err != nil && err != io.EOF {
			return chunk, classify(err)
		}
		if err == io.EOF {
			return chunk, nil
		}
		return chunk, nil
	}
	if err == io.EOF {
		return transfer.Chunk{}, io.EOF
	}
	if err != nil {
		return transfer.Chunk{}, classify(err)
	}
	return transfer.Chunk{}, nil
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

// classify wraps a body-read error as a transient transfer.Error; a
// connection drop mid-stream is recoverable by reopening from the
// worker's current offset.
func classify(err error) error {
	return &transfer.Error{Err: fmt.Errorf("httppuller: read: %w", err)}
}
