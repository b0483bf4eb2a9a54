package graph

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Exponential backoff parameters: base 500 ms doubling per attempt, capped
// at 20 s, with full jitter.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 20 * time.Second
)

// backoffDelay returns the delay before retry attempt n (0-based): a
// uniformly random duration in (0, min(base*2^n, cap)].
func backoffDelay(attempt int) time.Duration {
	max := backoffBase << attempt
	if max > backoffCap || max <= 0 {
		max = backoffCap
	}
	return time.Duration(rand.Int63n(int64(max))) + 1
}

// parseRetryAfter interprets a Retry-After header value as either delay
// seconds or an HTTP-date. Returns 0 when absent or malformed.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil {
		return 0
	}
	until := time.Until(at)
	if until < 0 {
		return 0
	}
	return until
}
