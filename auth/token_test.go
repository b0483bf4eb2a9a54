package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_ExpiresAt_AppliesSkew(t *testing.T) {
	acquired := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{AccessToken: "a", ExpiresIn: 3600, AcquiredAt: acquired}

	assert.Equal(t, acquired.Add(3600*time.Second-expirySkew), tok.ExpiresAt())
}

func TestToken_IsExpired(t *testing.T) {
	fresh := &Token{AccessToken: "a", ExpiresIn: 3600, AcquiredAt: time.Now()}
	assert.False(t, fresh.IsExpired())

	stale := &Token{AccessToken: "a", ExpiresIn: 3600, AcquiredAt: time.Now().Add(-2 * time.Hour)}
	assert.True(t, stale.IsExpired())

	// Lifetimes shorter than the skew are expired on arrival.
	short := &Token{AccessToken: "a", ExpiresIn: 1, AcquiredAt: time.Now()}
	assert.True(t, short.IsExpired())
}

func TestToken_OAuth2Conversion(t *testing.T) {
	acquired := time.Now()
	tok := &Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		AcquiredAt:   acquired,
		RefreshToken: "refresh",
	}

	o := tok.OAuth2()
	require.NotNil(t, o)
	assert.Equal(t, "access", o.AccessToken)
	assert.Equal(t, "Bearer", o.TokenType)
	assert.Equal(t, "refresh", o.RefreshToken)
	assert.Equal(t, acquired.Add(3600*time.Second), o.Expiry)
}

func TestTokenResponse_SplitsScopes(t *testing.T) {
	r := &tokenResponse{
		AccessToken: "a",
		TokenType:   "Bearer",
		ExpiresIn:   3599,
		Scope:       "openid offline_access User.Read",
	}

	tok := r.token()
	assert.Equal(t, []string{"openid", "offline_access", "User.Read"}, tok.Scopes)
	assert.WithinDuration(t, time.Now(), tok.AcquiredAt, time.Second)
}
