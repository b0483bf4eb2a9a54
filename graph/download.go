package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// DownloadURL extracts the pre-authenticated download URL annotation from a
// drive item body, or "" when absent. The URL is ephemeral and must not be
// logged.
func DownloadURL(item []byte) string {
	return gjson.GetBytes(item, `@microsoft\.graph\.downloadUrl`).String()
}

// Download streams the resource's content to w, returning the byte count.
// The service answers content requests with a redirect to a pre-authorized
// URL; the pooled HTTP client follows it.
func (c *Client) Download(ctx context.Context, rc ResourceConfig, w io.Writer) (int64, error) {
	u, err := rc.render(c.endpoint, c.version)
	if err != nil {
		return 0, err
	}

	resp, err := c.stream(ctx, http.MethodGet, u, nil, rc.headers)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return 0, mapError(resp.StatusCode, data)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, &TransportError{Err: err}
	}
	return n, nil
}

// DownloadResult is the outcome delivered by DownloadAsync.
type DownloadResult struct {
	Bytes int64
	Err   error
}

// DownloadAsync runs Download on its own goroutine and delivers the
// outcome on the returned channel.
func (c *Client) DownloadAsync(ctx context.Context, rc ResourceConfig, w io.Writer) <-chan DownloadResult {
	done := make(chan DownloadResult, 1)
	go func() {
		n, err := c.Download(ctx, rc, w)
		done <- DownloadResult{Bytes: n, Err: err}
	}()
	return done
}

// FetchDownloadURL resolves a drive item and returns its download URL
// annotation.
func (c *Client) FetchDownloadURL(ctx context.Context, rc ResourceConfig) (string, error) {
	resp, err := c.Get(ctx, rc, NewQuery().Select("id", "@microsoft.graph.downloadUrl"))
	if err != nil {
		return "", err
	}
	u := DownloadURL(resp.Body)
	if u == "" {
		return "", fmt.Errorf("graph: item has no download url annotation")
	}
	return u, nil
}
