package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthority_Defaults(t *testing.T) {
	a := NewAuthority("")
	assert.Equal(t, DefaultAuthorityHost, a.Host)
	assert.Equal(t, "common", a.Tenant)
}

func TestAuthority_Endpoints(t *testing.T) {
	a := NewAuthority("contoso.onmicrosoft.com")

	base := "https://login.microsoftonline.com/contoso.onmicrosoft.com"
	assert.Equal(t, base+"/oauth2/v2.0/authorize", a.AuthorizeURL())
	assert.Equal(t, base+"/oauth2/v2.0/token", a.TokenURL())
	assert.Equal(t, base+"/oauth2/v2.0/devicecode", a.DeviceCodeURL())
	assert.Equal(t, base+"/v2.0/.well-known/openid-configuration", a.DiscoveryURL())
	assert.Equal(t, base+"/v2.0", a.Issuer())
}

func TestAuthority_TrailingSlashHost(t *testing.T) {
	a := Authority{Host: "https://login.example.test/", Tenant: "t1"}
	assert.Equal(t, "https://login.example.test/t1/oauth2/v2.0/token", a.TokenURL())
}

func TestBuildAuthorizationURL(t *testing.T) {
	a := NewAuthority("common")
	pk, err := NewProofKey()
	require.NoError(t, err)

	raw, err := a.BuildAuthorizationURL(AuthorizationRequest{
		ClientID:    "client-1",
		RedirectURI: "http://localhost:8400/callback",
		Scopes:      []string{"openid", "User.Read"},
		State:       "state-1",
		Nonce:       "nonce-1",
		Prompt:      PromptSelectAccount,
		ProofKey:    pk,
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/common/oauth2/v2.0/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "query", q.Get("response_mode"))
	assert.Equal(t, "http://localhost:8400/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid User.Read", q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "nonce-1", q.Get("nonce"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, pk.Challenge, q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestBuildAuthorizationURL_Validation(t *testing.T) {
	a := NewAuthority("common")

	_, err := a.BuildAuthorizationURL(AuthorizationRequest{RedirectURI: "http://localhost/cb"})
	assert.True(t, IsKind(err, KindInvalidRequest))

	_, err = a.BuildAuthorizationURL(AuthorizationRequest{ClientID: "c"})
	assert.True(t, IsKind(err, KindInvalidRequest))

	_, err = a.BuildAuthorizationURL(AuthorizationRequest{
		ClientID:    "c",
		RedirectURI: "http://localhost/cb",
		ProofKey:    &ProofKey{},
	})
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestParseAuthorizationResponse_Query(t *testing.T) {
	resp, err := ParseAuthorizationResponse("http://localhost:8400/callback?code=abc&state=s1")
	require.NoError(t, err)

	assert.Equal(t, "abc", resp.Code)
	assert.Equal(t, "s1", resp.State)
	assert.False(t, resp.Failed())
}

func TestParseAuthorizationResponse_Fragment(t *testing.T) {
	resp, err := ParseAuthorizationResponse("http://localhost:8400/callback#code=frag-code&id_token=jwt&state=s2")
	require.NoError(t, err)

	assert.Equal(t, "frag-code", resp.Code)
	assert.Equal(t, "jwt", resp.IDToken)
	assert.Equal(t, "s2", resp.State)
}

func TestParseAuthorizationResponse_Error(t *testing.T) {
	resp, err := ParseAuthorizationResponse("http://localhost:8400/callback?error=access_denied&error_description=user+declined")
	require.NoError(t, err)

	assert.True(t, resp.Failed())
	assert.Equal(t, "access_denied", resp.Error)
	assert.Equal(t, "user declined", resp.ErrorDescription)
}

func TestParseAuthorizationForm(t *testing.T) {
	resp := ParseAuthorizationForm(url.Values{
		"code":  {"form-code"},
		"state": {"s3"},
	})

	assert.Equal(t, "form-code", resp.Code)
	assert.Equal(t, "s3", resp.State)
}
