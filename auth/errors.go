package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a credential failure.
type ErrorKind string

const (
	// KindNetwork indicates the token endpoint could not be reached.
	KindNetwork ErrorKind = "network"
	// KindInvalidGrant indicates the grant (code, refresh token, password)
	// was rejected.
	KindInvalidGrant ErrorKind = "invalid_grant"
	// KindInvalidClient indicates the client id, secret, or assertion was
	// rejected.
	KindInvalidClient ErrorKind = "invalid_client"
	// KindInvalidScope indicates one or more requested scopes were rejected.
	KindInvalidScope ErrorKind = "invalid_scope"
	// KindInteractionRequired indicates the grant cannot proceed without
	// user interaction.
	KindInteractionRequired ErrorKind = "interaction_required"
	// KindExpired indicates the cached token expired and could not be
	// silently refreshed.
	KindExpired ErrorKind = "expired"
	// KindMissingCredential indicates no usable credential material was
	// supplied.
	KindMissingCredential ErrorKind = "missing_credential"
	// KindIDTokenValidation indicates the id token failed validation.
	KindIDTokenValidation ErrorKind = "id_token_validation"
	// KindInvalidRequest indicates the request was malformed before it was
	// ever sent (missing client id, incompatible options).
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindUnknown covers everything the server reported that has no
	// dedicated kind.
	KindUnknown ErrorKind = "unknown"
)

// Error is a credential engine failure. It carries the OAuth error fields
// when the failure originated at the token endpoint.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Code is the raw OAuth error code off the wire ("invalid_grant",
	// "authorization_pending", ...), empty for local failures.
	Code string

	// Description is the human-readable error_description, or a local
	// explanation when the failure never reached the wire.
	Description string

	// Codes are the service-specific numeric error codes, when present.
	Codes []int

	// CorrelationID identifies the failing request on the server side.
	CorrelationID string

	// Err is the underlying cause, when one exists.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth: %s", e.Kind)
	}
	return fmt.Sprintf("auth: %s: %s", e.Kind, e.Description)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// wireError is the OAuth error object returned by the authority with an
// HTTP status >= 400.
type wireError struct {
	Code          string `json:"error"`
	Description   string `json:"error_description"`
	Codes         []int  `json:"error_codes"`
	CorrelationID string `json:"correlation_id"`
}

// kind maps the wire error code onto an ErrorKind.
func (w *wireError) kind() ErrorKind {
	switch w.Code {
	case "invalid_grant":
		return KindInvalidGrant
	case "invalid_client", "unauthorized_client":
		return KindInvalidClient
	case "invalid_scope":
		return KindInvalidScope
	case "interaction_required", "login_required", "consent_required":
		return KindInteractionRequired
	case "invalid_request":
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// parseWireError turns an error response body into an *Error. Bodies that
// are not the OAuth error object fall back to KindUnknown with the raw body
// as the description.
func parseWireError(statusCode int, body []byte) *Error {
	var w wireError
	if err := json.Unmarshal(body, &w); err != nil || w.Code == "" {
		return &Error{
			Kind:        KindUnknown,
			Description: fmt.Sprintf("token endpoint returned status %d: %s", statusCode, string(body)),
		}
	}
	return &Error{
		Kind:          w.kind(),
		Code:          w.Code,
		Description:   w.Description,
		Codes:         w.Codes,
		CorrelationID: w.CorrelationID,
	}
}

// networkError wraps a transport failure reaching the authority.
func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Description: err.Error(), Err: err}
}
