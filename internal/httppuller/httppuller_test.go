package httppuller

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/surge/internal/progress"
	"github.com/surge-downloader/surge/internal/testutil"
	"github.com/surge-downloader/surge/internal/transfer"
)

func readAll(t *testing.T, stream transfer.Stream) []byte {
	t.Helper()
	var buf bytes.Buffer
	for {
		chunk, err := stream.Next(context.Background())
		buf.Write(chunk.Data)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return buf.Bytes()
}

func TestPull_RangeRequestReturnsExactWindow(t *testing.T) {
	srv := testutil.NewMockServer(testutil.WithFileSize(1000), testutil.WithRangeSupport(true))
	defer srv.Close()

	p := New(nil, srv.URL()+"/file.bin")
	r := progress.ByteRange{Start: 100, End: 200}
	stream, err := p.Pull(context.Background(), &r)
	require.NoError(t, err)
	defer stream.Close()

	got := readAll(t, stream)
	require.Len(t, got, 100)
	for i, b := range got {
		assert.Equal(t, byte((100+i)%256), b, "byte %d", i)
	}
}

func TestPull_NilRangeFetchesWholeResource(t *testing.T) {
	srv := testutil.NewMockServer(testutil.WithFileSize(300), testutil.WithRangeSupport(false))
	defer srv.Close()

	p := New(nil, srv.URL()+"/file.bin")
	stream, err := p.Pull(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	got := readAll(t, stream)
	assert.Len(t, got, 300)
}

func TestPull_RangeRequestAgainstNonRangeServer_Irrecoverable(t *testing.T) {
	srv := testutil.NewMockServer(testutil.WithFileSize(300), testutil.WithRangeSupport(false))
	defer srv.Close()

	p := New(nil, srv.URL()+"/file.bin")
	r := progress.ByteRange{Start: 0, End: 100}
	_, err := p.Pull(context.Background(), &r)
	require.Error(t, err, "expected an error pulling a range from a non-range server")

	var terr *transfer.Error
	require.True(t, asTransferError(err, &terr), "expected *transfer.Error, got %T", err)
	assert.True(t, terr.Irrecoverable, "expected Irrecoverable = true for a 200 response to a range request")
}

func TestClone_ProducesIndependentUsablePuller(t *testing.T) {
	srv := testutil.NewMockServer(testutil.WithFileSize(100), testutil.WithRangeSupport(true))
	defer srv.Close()

	p := New(nil, srv.URL()+"/file.bin")
	cloned := p.Clone()

	r := progress.ByteRange{Start: 0, End: 10}
	stream, err := cloned.Pull(context.Background(), &r)
	require.NoError(t, err, "Pull() on clone")
	defer stream.Close()
	assert.Len(t, readAll(t, stream), 10)
}

func TestRateLimiter_Handle429_PrefersRetryAfterHeader(t *testing.T) {
	rl := &rateLimiter{}
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"5"}}}
	assert.Equal(t, 5*time.Second, rl.handle429(resp))
}

func TestRateLimiter_Handle429_BacksOffExponentiallyWithoutHeader(t *testing.T) {
	rl := &rateLimiter{}
	resp := &http.Response{Header: http.Header{}}

	assert.Equal(t, 1*time.Second, rl.handle429(resp))
	assert.Equal(t, 2*time.Second, rl.handle429(resp))
	assert.Equal(t, 4*time.Second, rl.handle429(resp))
}

func TestRateLimiter_Handle429_CapsAt60Seconds(t *testing.T) {
	rl := &rateLimiter{}
	resp := &http.Response{Header: http.Header{}}

	var last time.Duration
	for i := 0; i < 10; i++ {
		last = rl.handle429(resp)
	}
	assert.LessOrEqual(t, last, 60*time.Second)
}

func TestRateLimiter_ReportSuccess_ResetsBackoff(t *testing.T) {
	rl := &rateLimiter{}
	resp := &http.Response{Header: http.Header{}}

	rl.handle429(resp)
	rl.handle429(resp)
	rl.reportSuccess()

	assert.Equal(t, 1*time.Second, rl.handle429(resp))
}

func asTransferError(err error, out **transfer.Error) bool {
	te, ok := err.(*transfer.Error)
	if ok {
		*out = te
	}
	return ok
}
