package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthorizationCodeCredential_Validation(t *testing.T) {
	pk, err := NewProofKey()
	require.NoError(t, err)

	tests := []struct {
		name        string
		clientID    string
		code        string
		redirectURI string
		clientAuth  ClientAuth
		proofKey    *ProofKey
		wantKind    ErrorKind
	}{
		{name: "missing client id", code: "c", redirectURI: "r", proofKey: pk, wantKind: KindMissingCredential},
		{name: "missing code", clientID: "c", redirectURI: "r", proofKey: pk, wantKind: KindMissingCredential},
		{name: "missing redirect", clientID: "c", code: "x", proofKey: pk, wantKind: KindInvalidRequest},
		{name: "no client proof at all", clientID: "c", code: "x", redirectURI: "r", wantKind: KindMissingCredential},
		{name: "proof key without verifier", clientID: "c", code: "x", redirectURI: "r", proofKey: &ProofKey{Challenge: "ch"}, wantKind: KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthorizationCodeCredential("t", tt.clientID, tt.code, tt.redirectURI, tt.clientAuth, tt.proofKey, nil)
			assert.True(t, IsKind(err, tt.wantKind))
		})
	}
}

func TestAuthorizationCodeCredential_RedeemWithPKCE(t *testing.T) {
	pk, err := NewProofKey()
	require.NoError(t, err)

	h := &tokenHandler{respond: func(_ int, w http.ResponseWriter, _ url.Values) {
		writeToken(w, "tok-code", 3600, "refresh-code")
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	cred, err := NewAuthorizationCodeCredential("common", "client-1", "auth-code-1", "http://localhost:8400/cb",
		ClientAuth{}, pk, []string{"User.Read"},
		WithAuthorityHost(srv.URL), WithCache(NewTokenCache()))
	require.NoError(t, err)

	tok, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-code", tok.AccessToken)

	form := h.form(0)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "auth-code-1", form.Get("code"))
	assert.Equal(t, "http://localhost:8400/cb", form.Get("redirect_uri"))
	assert.Equal(t, pk.Verifier, form.Get("code_verifier"))
	assert.Empty(t, form.Get("client_secret"))
}

func TestAuthorizationCodeCredential_RedeemsOnce(t *testing.T) {
	pk, err := NewProofKey()
	require.NoError(t, err)

	h := &tokenHandler{respond: func(_ int, w http.ResponseWriter, _ url.Values) {
		writeToken(w, "tok-code", 3600, "refresh-code")
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	cred, err := NewAuthorizationCodeCredential("common", "client-1", "auth-code-1", "http://localhost:8400/cb",
		ClientAuth{}, pk, nil,
		WithAuthorityHost(srv.URL), WithCache(NewTokenCache()))
	require.NoError(t, err)

	_, err = cred.GetToken(context.Background())
	require.NoError(t, err)
	_, err = cred.GetToken(context.Background())
	require.NoError(t, err)

	// The second call serves the cache; the code was not replayed.
	assert.Equal(t, 1, h.calls())
}

func TestAuthorizationCodeCredential_RefreshAfterRedemption(t *testing.T) {
	h := &tokenHandler{respond: func(n int, w http.ResponseWriter, _ url.Values) {
		if n == 0 {
			// Expired on arrival; forces the refresh path next call.
			writeToken(w, "tok-a", 1, "refresh-1")
			return
		}
		writeToken(w, "tok-b", 3600, "refresh-2")
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	cred, err := NewAuthorizationCodeCredential("common", "client-1", "auth-code-1", "http://localhost:8400/cb",
		ClientAuth{Secret: "secret-1"}, nil, nil,
		WithAuthorityHost(srv.URL), WithCache(NewTokenCache()))
	require.NoError(t, err)

	_, err = cred.GetToken(context.Background())
	require.NoError(t, err)

	tok, err := cred.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-b", tok.AccessToken)

	refreshForm := h.form(1)
	assert.Equal(t, "refresh_token", refreshForm.Get("grant_type"))
	assert.Equal(t, "secret-1", refreshForm.Get("client_secret"))
}
