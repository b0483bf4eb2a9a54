package graph

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError_Envelope(t *testing.T) {
	body := []byte(`{
		"error": {
			"code": "itemNotFound",
			"message": "The resource could not be found.",
			"innerError": {
				"code": "nameAlreadyExists",
				"request-id": "req-1",
				"date": "2025-06-01T12:00:00"
			}
		}
	}`)

	err := mapError(http.StatusNotFound, body)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusNotFound, ge.StatusCode)
	assert.Equal(t, "itemNotFound", ge.Code)
	assert.Equal(t, "The resource could not be found.", ge.Message)
	assert.Equal(t, "req-1", ge.RequestID)
	assert.Equal(t, "2025-06-01T12:00:00", ge.Date)
	assert.Equal(t, "nameAlreadyExists", ge.DetailedCode)
	assert.Contains(t, ge.Error(), "itemNotFound")
}

func TestMapError_NonEnvelopeBody(t *testing.T) {
	err := mapError(http.StatusBadGateway, []byte("<html>oops</html>"))

	var ue *UnparsedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, []byte("<html>oops</html>"), ue.Body)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 404, StatusOf(&Error{StatusCode: 404}))
	assert.Equal(t, 502, StatusOf(&UnparsedError{StatusCode: 502}))
	assert.Equal(t, 404, StatusOf(fmt.Errorf("wrapped: %w", &Error{StatusCode: 404})))
	assert.Equal(t, 0, StatusOf(errors.New("plain")))
	assert.Equal(t, 0, StatusOf(nil))
}

func TestIsThrottled(t *testing.T) {
	assert.True(t, IsThrottled(http.StatusTooManyRequests))
	assert.True(t, IsThrottled(http.StatusServiceUnavailable))
	assert.False(t, IsThrottled(http.StatusOK))
	assert.False(t, IsThrottled(http.StatusBadGateway))
}

func TestIsBackoffStatus(t *testing.T) {
	assert.True(t, isBackoffStatus(http.StatusBadGateway))
	assert.True(t, isBackoffStatus(http.StatusGatewayTimeout))
	assert.False(t, isBackoffStatus(http.StatusServiceUnavailable))
	assert.False(t, isBackoffStatus(http.StatusInternalServerError))
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TransportError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
