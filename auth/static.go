package auth

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// staticLifetime is the nominal lifetime stamped on static bearers so
// IsExpired stays false for the life of the process.
const staticLifetime = int64(10 * 365 * 24 * 60 * 60)

// StaticTokenCredential serves a pre-existing bearer string. It never
// refreshes; expiry is the caller's problem.
type StaticTokenCredential struct {
	token *Token
}

// NewStaticTokenCredential wraps an existing bearer string.
func NewStaticTokenCredential(bearer string) (*StaticTokenCredential, error) {
	if bearer == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "bearer token is empty"}
	}
	return &StaticTokenCredential{
		token: &Token{
			AccessToken: bearer,
			TokenType:   "Bearer",
			ExpiresIn:   staticLifetime,
			AcquiredAt:  time.Now(),
		},
	}, nil
}

// GetToken returns the wrapped bearer.
func (c *StaticTokenCredential) GetToken(_ context.Context) (*Token, error) {
	return c.token, nil
}

// TokenSourceCredential adapts a golang.org/x/oauth2 TokenSource, letting
// any oauth2-ecosystem flow drive the pipeline. The source's own caching
// and refresh semantics apply.
type TokenSourceCredential struct {
	source oauth2.TokenSource
}

// NewTokenSourceCredential wraps an oauth2.TokenSource.
func NewTokenSourceCredential(source oauth2.TokenSource) (*TokenSourceCredential, error) {
	if source == nil {
		return nil, &Error{Kind: KindMissingCredential, Description: "token source is nil"}
	}
	return &TokenSourceCredential{source: source}, nil
}

// GetToken pulls a token from the wrapped source.
func (c *TokenSourceCredential) GetToken(_ context.Context) (*Token, error) {
	tok, err := c.source.Token()
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Description: "token source: " + err.Error(), Err: err}
	}
	return fromOAuth2(tok), nil
}
