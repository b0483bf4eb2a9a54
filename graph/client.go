package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/graphkit/auth"
)

// DefaultEndpoint is the public Microsoft Graph host.
const DefaultEndpoint = "https://graph.microsoft.com"

// Client defaults.
const (
	defaultTimeout  = 30 * time.Second
	defaultRetryCap = 3
	defaultAgent    = "graphkit-go/1.0"
)

// Client executes resource requests through the policy pipeline. It is
// safe for concurrent use; the underlying HTTP client pools connections
// across all invocations.
type Client struct {
	hc                *http.Client
	endpoint          string
	version           string
	cred              auth.Credential
	defaultHeaders    map[string]string
	userAgent         string
	timeout           time.Duration
	retryCap          int
	waitForRetryAfter bool
	httpsOnly         bool
	limiter           *rate.Limiter
	logger            *slog.Logger

	pipeline []Policy
}

// ClientOption mutates client construction.
type ClientOption func(*Client)

// WithEndpoint overrides the service endpoint (sovereign clouds, test
// servers).
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = strings.TrimSuffix(endpoint, "/") }
}

// WithVersion selects the API version for all requests (VersionV1 or
// VersionBeta).
func WithVersion(version string) ClientOption {
	return func(c *Client) { c.version = version }
}

// WithBeta switches the client to the preview surface.
func WithBeta() ClientOption {
	return WithVersion(VersionBeta)
}

// WithTimeout bounds each request end to end, retry backoff included.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRetryCap bounds retries per request across both retry policies.
func WithRetryCap(n int) ClientOption {
	return func(c *Client) { c.retryCap = n }
}

// WithDefaultHeaders applies client-wide headers to every request that
// does not already carry them.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) { c.defaultHeaders = headers }
}

// WithUserAgent replaces the default user agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithWaitForRetryAfter makes the throttle policy honor Retry-After delays
// instead of its own backoff.
func WithWaitForRetryAfter(wait bool) ClientOption {
	return func(c *Client) { c.waitForRetryAfter = wait }
}

// WithInsecureAllowHTTP permits plain-http endpoints. For testing only.
func WithInsecureAllowHTTP() ClientOption {
	return func(c *Client) { c.httpsOnly = false }
}

// WithRateLimit paces outbound requests with a token bucket.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst) }
}

// WithLogger sets the structured logger for pipeline events.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// NewClient builds a Graph client around a credential.
func NewClient(cred auth.Credential, opts ...ClientOption) (*Client, error) {
	c := &Client{
		hc:                &http.Client{},
		endpoint:          DefaultEndpoint,
		version:           VersionV1,
		cred:              cred,
		userAgent:         defaultAgent,
		timeout:           defaultTimeout,
		retryCap:          defaultRetryCap,
		waitForRetryAfter: true,
		httpsOnly:         true,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpsOnly && !strings.HasPrefix(c.endpoint, "https://") {
		return nil, fmt.Errorf("graph: endpoint %q is not https (use WithInsecureAllowHTTP in tests)", c.endpoint)
	}
	switch c.version {
	case VersionV1, VersionBeta:
	default:
		return nil, fmt.Errorf("graph: unknown API version %q", c.version)
	}

	c.pipeline = newPipeline(c)
	return c, nil
}

// Execute renders the resource config and runs method against it.
func (c *Client) Execute(ctx context.Context, rc ResourceConfig, method string, body *Body, q *Query) (*Response, error) {
	u, err := rc.render(c.endpoint, c.version)
	if err != nil {
		return nil, err
	}
	u = q.appendTo(u)
	return c.Do(ctx, method, u, body, rc.headers)
}

// Get issues a GET for the resource.
func (c *Client) Get(ctx context.Context, rc ResourceConfig, q *Query) (*Response, error) {
	return c.Execute(ctx, rc, http.MethodGet, nil, q)
}

// Post issues a POST with the given body.
func (c *Client) Post(ctx context.Context, rc ResourceConfig, body *Body) (*Response, error) {
	return c.Execute(ctx, rc, http.MethodPost, body, nil)
}

// Patch issues a PATCH with the given body.
func (c *Client) Patch(ctx context.Context, rc ResourceConfig, body *Body) (*Response, error) {
	return c.Execute(ctx, rc, http.MethodPatch, body, nil)
}

// Put issues a PUT with the given body.
func (c *Client) Put(ctx context.Context, rc ResourceConfig, body *Body) (*Response, error) {
	return c.Execute(ctx, rc, http.MethodPut, body, nil)
}

// Delete issues a DELETE for the resource.
func (c *Client) Delete(ctx context.Context, rc ResourceConfig) (*Response, error) {
	return c.Execute(ctx, rc, http.MethodDelete, nil, nil)
}

// ResolveURL renders a resource config against the client's endpoint and
// version, appending any query modifiers.
func (c *Client) ResolveURL(rc ResourceConfig, q *Query) (string, error) {
	u, err := rc.render(c.endpoint, c.version)
	if err != nil {
		return "", err
	}
	return q.appendTo(u), nil
}

// Do executes method against an absolute URL through the pipeline. The
// paging and upload engines use it to follow server-minted links.
func (c *Client) Do(ctx context.Context, method, rawURL string, body *Body, extra http.Header) (*Response, error) {
	resp, err := c.stream(ctx, method, rawURL, body, extra)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, mapError(resp.StatusCode, data)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// stream runs the pipeline and hands back the raw response without reading
// the body. The caller owns closing it. Error statuses are NOT mapped.
func (c *Client) stream(ctx context.Context, method, rawURL string, body *Body, extra http.Header) (*http.Response, error) {
	if c.httpsOnly && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("graph: refusing non-https url %q", rawURL)
	}

	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	raw, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("graph: build request: %w", err)
	}
	for k, vals := range extra {
		for _, v := range vals {
			raw.Header.Add(k, v)
		}
	}

	req := &Request{raw: raw, body: body, policies: c.pipeline}
	resp, err := req.Next()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}
	if cancel != nil {
		// Tie the cancel to body close so the timeout covers the read.
		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	}
	return resp, nil
}

// cancelReadCloser releases the request's context when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
