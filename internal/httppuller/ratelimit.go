package httppuller

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// rateLimiter tracks consecutive 429 hits for one Puller's finalURL, shared
// across all of its clones (one instance per download, not per worker) so a
// burst across workers backs off as a unit rather than each worker starting
// its own count from zero.
type rateLimiter struct {
	consecutiveHits atomic.Int32
}

// handle429 returns how long the caller should wait before retrying: the
// Retry-After header if the origin sent one (seconds or HTTP-date), else an
// exponential backoff keyed on consecutiveHits — 1s, 2s, 4s, ... capped at
// 60s.
func (rl *rateLimiter) handle429(resp *http.Response) time.Duration {
	hits := rl.consecutiveHits.Add(1)

	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if t, err := http.ParseTime(h); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
			return time.Second
		}
	}

	const (
		base   = time.Second
		maxDur = 60 * time.Second
	)
	shift := min(int(hits-1), 6) // 2^6 * 1s = 64s, clamped to maxDur below
	wait := base << shift
	if wait > maxDur {
		wait = maxDur
	}
	return wait
}

// reportSuccess resets the consecutive-hit count once a request completes
// without a 429, so a later isolated 429 starts its backoff back at 1s.
func (rl *rateLimiter) reportSuccess() {
	rl.consecutiveHits.Store(0)
}
