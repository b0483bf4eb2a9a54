// Package upload drives resumable chunked uploads against an
// upload-session URL.
//
// A Session fragments a byte source on protocol-mandated 320 KiB
// boundaries and sends one fragment per Next call through the request
// pipeline. Channel wraps the driver for producer/consumer splits. Cancel
// deletes the server-side session; Status queries it to realign after a
// failure.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/graphkit/graph"
)

// FragmentUnit is the mandated chunk alignment: every chunk except the
// last must be an integral multiple of 320 KiB.
const FragmentUnit = 327680

// maxFragments caps how many chunks the adaptive size selection allows.
const maxFragments = 2000

// Session lifecycle errors.
var (
	// ErrCompleted is returned by Next after the final chunk succeeded.
	ErrCompleted = errors.New("upload: session complete")
	// ErrCancelled is returned after Cancel, and by uploads aborted via
	// context.
	ErrCancelled = errors.New("upload: session cancelled")
	// ErrExpired is returned when the server-side session expired before
	// the upload finished.
	ErrExpired = errors.New("upload: session expired")
)

// state is the driver's position in its lifecycle.
type state int

const (
	stateReady state = iota
	stateComplete
	stateCancelled
	stateFailed
)

// Session is a chunked upload state machine. It is not safe for concurrent
// use; wrap it in Channel for producer/consumer splits.
type Session struct {
	client  *graph.Client
	url     string
	expires time.Time

	src   io.ReaderAt
	total int64
	chunk int64

	cursor int64
	st     state
	err    error
	final  []byte
}

// New builds a driver over an already-created upload session. src must
// cover exactly total bytes.
func New(client *graph.Client, uploadURL string, expires time.Time, src io.ReaderAt, total int64) *Session {
	return &Session{
		client:  client,
		url:     uploadURL,
		expires: expires,
		src:     src,
		total:   total,
		chunk:   chunkSize(total),
	}
}

// Create asks the service for an upload session at the given resource
// (".../createUploadSession") and returns a driver over it. props is the
// optional request body (conflict behavior, file metadata).
func Create(ctx context.Context, client *graph.Client, rc graph.ResourceConfig, props any, src io.ReaderAt, total int64) (*Session, error) {
	var body *graph.Body
	if props != nil {
		b, err := graph.JSONBody(props)
		if err != nil {
			return nil, err
		}
		body = b
	}

	resp, err := client.Post(ctx, rc, body)
	if err != nil {
		return nil, err
	}

	uploadURL := gjson.GetBytes(resp.Body, "uploadUrl").String()
	if uploadURL == "" {
		return nil, fmt.Errorf("upload: create session response has no uploadUrl")
	}
	expires, _ := time.Parse(time.RFC3339, gjson.GetBytes(resp.Body, "expirationDateTime").String())

	return New(client, uploadURL, expires, src, total), nil
}

// FromFile opens path as the byte source for an upload.
func FromFile(path string) (io.ReaderAt, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open upload source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat upload source: %w", err)
	}
	return f, info.Size(), nil
}

// FromBytes wraps an in-memory buffer as the byte source.
func FromBytes(data []byte) (io.ReaderAt, int64) {
	return bytes.NewReader(data), int64(len(data))
}

// chunkSize picks a multiple of FragmentUnit so the chunk count stays in a
// sane range. Inputs no larger than one unit upload as a single chunk.
func chunkSize(total int64) int64 {
	if total <= FragmentUnit {
		return FragmentUnit
	}
	size := int64(FragmentUnit)
	for (total+size-1)/size > maxFragments {
		size += FragmentUnit
	}
	return size
}

// ChunkSize returns the fragment size the session selected.
func (s *Session) ChunkSize() int64 {
	return s.chunk
}

// Cursor returns the offset of the next byte to send.
func (s *Session) Cursor() int64 {
	return s.cursor
}

// More reports whether chunks remain to be sent.
func (s *Session) More() bool {
	return s.st == stateReady
}

// Final returns the resource representation from the terminal response,
// once Complete.
func (s *Session) Final() []byte {
	return s.final
}

// ChunkResult describes one accepted chunk.
type ChunkResult struct {
	// Start and End are the inclusive byte range that was accepted.
	Start, End int64

	// StatusCode is 202 mid-stream, 200 or 201 on the final chunk.
	StatusCode int

	// Body is the response body: nextExpectedRanges mid-stream, the final
	// resource representation at the end.
	Body []byte

	// Done is true once the final chunk has been accepted.
	Done bool
}

// Next sends the next fragment. A 416 response triggers a status query and
// cursor realignment, then one re-send. After the terminal chunk, Next
// returns ErrCompleted.
func (s *Session) Next(ctx context.Context) (*ChunkResult, error) {
	switch s.st {
	case stateComplete:
		return nil, ErrCompleted
	case stateCancelled:
		return nil, ErrCancelled
	case stateFailed:
		return nil, s.err
	}
	if !s.expires.IsZero() && time.Now().After(s.expires) {
		return nil, s.fail(ErrExpired)
	}

	res, err := s.sendChunk(ctx)
	if err == nil {
		return res, nil
	}

	// Requested Range Not Satisfiable: the server's view of the cursor
	// diverged; realign from its nextExpectedRanges and re-send once.
	if graph.StatusOf(err) == http.StatusRequestedRangeNotSatisfiable {
		status, serr := s.Status(ctx)
		if serr != nil {
			return nil, s.fail(serr)
		}
		if next, ok := status.NextOffset(); ok {
			s.cursor = next
		}
		if res, err = s.sendChunk(ctx); err == nil {
			return res, nil
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	return nil, s.fail(err)
}

// sendChunk PUTs the fragment at the current cursor and advances it.
func (s *Session) sendChunk(ctx context.Context) (*ChunkResult, error) {
	start := s.cursor
	end := start + s.chunk - 1
	if end >= s.total {
		end = s.total - 1
	}

	buf := make([]byte, end-start+1)
	if _, err := s.src.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("upload: read source range %d-%d: %w", start, end, err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, s.total))

	resp, err := s.client.Do(ctx, http.MethodPut, s.url, graph.BytesBody("application/octet-stream", buf), hdr)
	if err != nil {
		return nil, err
	}

	res := &ChunkResult{Start: start, End: end, StatusCode: resp.StatusCode, Body: resp.Body}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		s.st = stateComplete
		s.final = resp.Body
		s.cursor = s.total
		res.Done = true
	default:
		// Contiguous uploads ignore nextExpectedRanges except as a
		// consistency check; honor the server when it disagrees.
		s.cursor = end + 1
		if next, ok := firstExpectedOffset(resp.Body); ok && next != s.cursor {
			s.cursor = next
		}
	}
	return res, nil
}

// firstExpectedOffset reads the first byte of the leading
// nextExpectedRanges entry from a 202 body.
func firstExpectedOffset(body []byte) (int64, bool) {
	ranges := gjson.GetBytes(body, "nextExpectedRanges").Array()
	if len(ranges) == 0 {
		return 0, false
	}
	first, _, _ := strings.Cut(ranges[0].String(), "-")
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// fail latches the terminal error.
func (s *Session) fail(err error) error {
	s.st = stateFailed
	s.err = err
	return err
}

// Cancel deletes the server-side session. It is idempotent: cancelling a
// cancelled session is a no-op.
func (s *Session) Cancel(ctx context.Context) error {
	if s.st == stateCancelled {
		return nil
	}
	if _, err := s.client.Do(ctx, http.MethodDelete, s.url, nil, nil); err != nil {
		return err
	}
	s.st = stateCancelled
	s.err = ErrCancelled
	return nil
}

// SessionStatus is the server's view of an in-progress upload.
type SessionStatus struct {
	ExpirationDateTime time.Time
	NextExpectedRanges []string
}

// NextOffset returns the first byte the server expects, parsed from the
// leading range ("12345-" or "12345-67890").
func (st *SessionStatus) NextOffset() (int64, bool) {
	if len(st.NextExpectedRanges) == 0 {
		return 0, false
	}
	first, _, _ := strings.Cut(st.NextExpectedRanges[0], "-")
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Status queries the upload session.
func (s *Session) Status(ctx context.Context) (*SessionStatus, error) {
	resp, err := s.client.Do(ctx, http.MethodGet, s.url, nil, nil)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{}
	status.ExpirationDateTime, _ = time.Parse(time.RFC3339, gjson.GetBytes(resp.Body, "expirationDateTime").String())
	for _, r := range gjson.GetBytes(resp.Body, "nextExpectedRanges").Array() {
		status.NextExpectedRanges = append(status.NextExpectedRanges, r.String())
	}
	return status, nil
}

// Result carries either a chunk result or the error that ended the
// upload.
type Result struct {
	Chunk *ChunkResult
	Err   error
}

// Channel spawns the driver on its own goroutine and delivers each chunk
// result on the returned channel, which closes on completion, failure, or
// cancellation. The driver does not send chunk n+1 until chunk n has been
// received.
func (s *Session) Channel(ctx context.Context) <-chan Result {
	ch := make(chan Result)
	go func() {
		defer close(ch)
		for s.More() {
			res, err := s.Next(ctx)
			if err != nil {
				select {
				case ch <- Result{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case ch <- Result{Chunk: res}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Complete drives the session to the end and returns the final resource
// representation.
func (s *Session) Complete(ctx context.Context) ([]byte, error) {
	for s.More() {
		if _, err := s.Next(ctx); err != nil {
			return nil, err
		}
	}
	if s.st != stateComplete {
		return nil, s.err
	}
	return s.final, nil
}
