package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Content types the pipeline emits.
const (
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

// Body is a request payload. Replayable bodies can be re-opened per retry
// attempt; a plain reader body disables retries after first transmission.
type Body struct {
	contentType string
	length      int64
	replayable  bool
	open        func() (io.ReadCloser, error)
}

// JSONBody serializes v as the JSON request payload. Serialization failures
// wrap ErrEncoding.
func JSONBody(v any) (*Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request body: %v", ErrEncoding, err)
	}
	return &Body{
		contentType: contentTypeJSON,
		length:      int64(len(data)),
		replayable:  true,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}, nil
}

// BytesBody wraps a raw byte buffer. An empty contentType defaults to
// application/octet-stream.
func BytesBody(contentType string, data []byte) *Body {
	if contentType == "" {
		contentType = contentTypeBinary
	}
	return &Body{
		contentType: contentType,
		length:      int64(len(data)),
		replayable:  true,
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileBody streams a file from disk, inferring the content type from the
// extension. The file is re-opened per retry attempt.
func FileBody(path string) (*Body, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload file: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = contentTypeBinary
	}
	return &Body{
		contentType: contentType,
		length:      info.Size(),
		replayable:  true,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ReaderBody streams from r. length may be -1 when unknown. The body can
// only be sent once, so transport-level retries are skipped for it.
func ReaderBody(contentType string, r io.Reader, length int64) *Body {
	if contentType == "" {
		contentType = contentTypeBinary
	}
	consumed := false
	return &Body{
		contentType: contentType,
		length:      length,
		replayable:  false,
		open: func() (io.ReadCloser, error) {
			if consumed {
				return nil, fmt.Errorf("request body already consumed")
			}
			consumed = true
			if rc, ok := r.(io.ReadCloser); ok {
				return rc, nil
			}
			return io.NopCloser(r), nil
		},
	}
}
