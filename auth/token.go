package auth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// expirySkew is subtracted from a token's lifetime so that callers never
// receive a token that expires mid-flight.
const expirySkew = 5 * time.Second

// Token is a bearer token returned by the token endpoint.
// Tokens are immutable after construction; a refresh produces a new Token.
type Token struct {
	// AccessToken is the opaque bearer string.
	AccessToken string

	// TokenType is the token type reported by the server (normally "Bearer").
	TokenType string

	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64

	// AcquiredAt is the local time the token was received.
	AcquiredAt time.Time

	// RefreshToken, when present, allows silent renewal of the access token.
	RefreshToken string

	// IDToken is the OpenID Connect id token, when one was requested.
	IDToken string

	// Scopes are the scopes actually granted, which may differ from those
	// requested.
	Scopes []string
}

// ExpiresAt returns the instant the token stops being valid, skew included.
func (t *Token) ExpiresAt() time.Time {
	return t.AcquiredAt.Add(time.Duration(t.ExpiresIn)*time.Second - expirySkew)
}

// IsExpired reports whether the token should no longer be used.
func (t *Token) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt())
}

// OAuth2 converts the token for use with golang.org/x/oauth2 consumers.
func (t *Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.AcquiredAt.Add(time.Duration(t.ExpiresIn) * time.Second),
	}
}

// fromOAuth2 converts an x/oauth2 token into the internal representation.
func fromOAuth2(t *oauth2.Token) *Token {
	now := time.Now()
	tok := &Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		AcquiredAt:   now,
	}
	if !t.Expiry.IsZero() {
		tok.ExpiresIn = int64(t.Expiry.Sub(now) / time.Second)
	}
	if id, ok := t.Extra("id_token").(string); ok {
		tok.IDToken = id
	}
	return tok
}

// tokenResponse is the wire shape of a successful token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	Scope        string `json:"scope"`
}

// token converts the wire response into a Token stamped with the local
// acquisition time.
func (r *tokenResponse) token() *Token {
	var scopes []string
	if r.Scope != "" {
		scopes = strings.Fields(r.Scope)
	}
	return &Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		AcquiredAt:   time.Now(),
		RefreshToken: r.RefreshToken,
		IDToken:      r.IDToken,
		Scopes:       scopes,
	}
}
