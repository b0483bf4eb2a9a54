package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a successful service response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v. Failures wrap ErrEncoding.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: decode response body: %v", ErrEncoding, err)
	}
	return nil
}

// RequestID returns the service-assigned request id, when present.
func (r *Response) RequestID() string {
	return r.Header.Get("request-id")
}
