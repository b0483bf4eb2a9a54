package graph

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_Bounds(t *testing.T) {
	for attempt := 0; attempt < 12; attempt++ {
		d := backoffDelay(attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, backoffCap, "attempt %d", attempt)
	}
}

func TestBackoffDelay_GrowsWithAttempt(t *testing.T) {
	// Jitter spans (0, base*2^n]; the ceiling for attempt 0 is the base.
	for i := 0; i < 64; i++ {
		assert.LessOrEqual(t, backoffDelay(0), backoffBase)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: 0},
		{name: "seconds", value: "5", want: 5 * time.Second},
		{name: "zero seconds", value: "0", want: 0},
		{name: "negative seconds", value: "-3", want: 0},
		{name: "garbage", value: "soon", want: 0},
		{name: "past http date", value: "Mon, 02 Jan 2006 15:04:05 GMT", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value))
		})
	}
}

func TestParseRetryAfter_FutureDate(t *testing.T) {
	at := time.Now().Add(30 * time.Second).UTC()
	got := parseRetryAfter(at.Format(http.TimeFormat))

	assert.Greater(t, got, 20*time.Second)
	assert.LessOrEqual(t, got, 30*time.Second)
}
