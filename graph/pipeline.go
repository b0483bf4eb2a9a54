package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/graphkit/auth"
)

// Policy is one stage of the request pipeline. A policy may mutate the
// request, call req.Next() zero or more times, and inspect the responses it
// gets back.
type Policy interface {
	Do(req *Request) (*http.Response, error)
}

// Request is the per-invocation pipeline state: the outbound HTTP request,
// its (re-openable) body, and the position in the policy chain.
type Request struct {
	raw      *http.Request
	body     *Body
	policies []Policy
	index    int
}

// Raw exposes the underlying HTTP request for mutation by policies.
func (r *Request) Raw() *http.Request {
	return r.raw
}

// Context returns the request's context.
func (r *Request) Context() context.Context {
	return r.raw.Context()
}

// Next runs the remainder of the chain. Retry policies call it repeatedly;
// the index is restored on return so each call replays the downstream
// stages.
func (r *Request) Next() (*http.Response, error) {
	p := r.policies[r.index]
	r.index++
	resp, err := p.Do(r)
	r.index--
	return resp, err
}

// newPipeline assembles the default policy chain: authentication, default
// headers, throttle-aware retry, exponential backoff retry, rate limit,
// terminal transport.
func newPipeline(c *Client) []Policy {
	policies := []Policy{
		&authPolicy{cred: c.cred},
		&headersPolicy{defaults: c.defaultHeaders, userAgent: c.userAgent},
		&throttlePolicy{
			maxRetries:        c.retryCap,
			waitForRetryAfter: c.waitForRetryAfter,
			logger:            c.logger,
		},
		&backoffPolicy{maxRetries: c.retryCap, logger: c.logger},
	}
	if c.limiter != nil {
		policies = append(policies, &rateLimitPolicy{limiter: c.limiter})
	}
	return append(policies, &transportPolicy{hc: c.hc, logger: c.logger})
}

// authPolicy resolves a bearer token and attaches the Authorization header.
type authPolicy struct {
	cred auth.Credential
}

func (p *authPolicy) Do(req *Request) (*http.Response, error) {
	if p.cred != nil {
		tok, err := p.cred.GetToken(req.Context())
		if err != nil {
			return nil, err
		}
		req.Raw().Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	return req.Next()
}

// headersPolicy applies client-wide default headers without clobbering
// anything the caller set.
type headersPolicy struct {
	defaults  map[string]string
	userAgent string
}

func (p *headersPolicy) Do(req *Request) (*http.Response, error) {
	h := req.Raw().Header
	if h.Get("Accept") == "" {
		h.Set("Accept", contentTypeJSON)
	}
	if h.Get("User-Agent") == "" && p.userAgent != "" {
		h.Set("User-Agent", p.userAgent)
	}
	if h.Get("client-request-id") == "" {
		h.Set("client-request-id", uuid.NewString())
	}
	for k, v := range p.defaults {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
	return req.Next()
}

// throttlePolicy retries 429 and 503 responses, honoring Retry-After when
// configured to wait.
type throttlePolicy struct {
	maxRetries        int
	waitForRetryAfter bool
	logger            *slog.Logger
}

func (p *throttlePolicy) Do(req *Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := req.Next()
		if err != nil || !IsThrottled(resp.StatusCode) {
			return resp, err
		}
		if attempt >= p.maxRetries || !req.body.canReplay() {
			return resp, nil
		}

		delay := backoffDelay(attempt)
		if after := parseRetryAfter(resp.Header.Get("Retry-After")); after > 0 && p.waitForRetryAfter {
			delay = after
		}
		drain(resp)

		p.logger.Warn("request throttled, retrying",
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay.String(),
		)
		if err := sleep(req.Context(), delay); err != nil {
			return nil, err
		}
	}
}

// backoffPolicy retries 502/504 and transport errors with exponential
// delay and full jitter.
type backoffPolicy struct {
	maxRetries int
	logger     *slog.Logger
}

func (p *backoffPolicy) Do(req *Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := req.Next()

		var te *TransportError
		transient := err != nil && errors.As(err, &te)
		if err == nil && !isBackoffStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && !transient {
			return nil, err
		}
		if attempt >= p.maxRetries || !req.body.canReplay() {
			return resp, err
		}
		lastErr = err
		if resp != nil {
			drain(resp)
		}

		delay := backoffDelay(attempt)
		p.logger.Warn("request failed, backing off",
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", errString(lastErr),
		)
		if serr := sleep(req.Context(), delay); serr != nil {
			return nil, serr
		}
	}
}

// rateLimitPolicy paces outbound requests through a shared token bucket.
type rateLimitPolicy struct {
	limiter *rate.Limiter
}

func (p *rateLimitPolicy) Do(req *Request) (*http.Response, error) {
	if err := p.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return req.Next()
}

// transportPolicy is the terminal stage: it attaches the body and performs
// the HTTP call.
type transportPolicy struct {
	hc     *http.Client
	logger *slog.Logger
}

func (p *transportPolicy) Do(req *Request) (*http.Response, error) {
	raw := req.Raw()
	if err := req.body.attach(raw); err != nil {
		return nil, err
	}

	start := time.Now()
	p.logger.Debug("request start",
		"method", raw.Method,
		"url", raw.URL.Redacted(),
	)

	resp, err := p.hc.Do(raw)
	if err != nil {
		// Context expiry is surfaced as-is so callers can distinguish
		// cancellation from transport failure.
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Err: err}
	}

	p.logger.Debug("request complete",
		"method", raw.Method,
		"url", raw.URL.Redacted(),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// canReplay reports whether the request body allows another attempt. A nil
// body always does.
func (b *Body) canReplay() bool {
	return b == nil || b.replayable
}

// attach opens the body onto the raw request for one attempt.
func (b *Body) attach(raw *http.Request) error {
	if b == nil {
		raw.Body = http.NoBody
		return nil
	}
	rc, err := b.open()
	if err != nil {
		return &TransportError{Err: err}
	}
	raw.Body = rc
	if b.length >= 0 {
		raw.ContentLength = b.length
		raw.Header.Set("Content-Length", strconv.FormatInt(b.length, 10))
	}
	if raw.Header.Get("Content-Type") == "" {
		raw.Header.Set("Content-Type", b.contentType)
	}
	return nil
}

// drain discards and closes a response body so the connection can be
// reused across retry attempts.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// sleep blocks for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
