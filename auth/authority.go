package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default Microsoft identity platform endpoints.
const (
	// DefaultAuthorityHost is the public cloud login host.
	DefaultAuthorityHost = "https://login.microsoftonline.com"

	// DefaultTenant is the multi-tenant authority segment.
	DefaultTenant = "common"
)

// clientAssertionType is the value required when authenticating with a JWT
// client assertion (RFC 7523).
//
//nolint:gosec // G101: not a credential, a protocol constant
const clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Authority identifies the OAuth authorization server for a tenant.
type Authority struct {
	// Host is the login host, without a trailing slash.
	Host string

	// Tenant is the tenant id, domain, or one of the well-known aliases
	// ("common", "organizations", "consumers").
	Tenant string
}

// NewAuthority returns an Authority for the given tenant on the public
// cloud host. An empty tenant selects the multi-tenant authority.
func NewAuthority(tenant string) Authority {
	if tenant == "" {
		tenant = DefaultTenant
	}
	return Authority{Host: DefaultAuthorityHost, Tenant: tenant}
}

// base returns the tenant-scoped authority prefix.
func (a Authority) base() string {
	host := strings.TrimSuffix(a.Host, "/")
	if host == "" {
		host = DefaultAuthorityHost
	}
	tenant := a.Tenant
	if tenant == "" {
		tenant = DefaultTenant
	}
	return host + "/" + tenant
}

// AuthorizeURL returns the authorization endpoint.
func (a Authority) AuthorizeURL() string {
	return a.base() + "/oauth2/v2.0/authorize"
}

// TokenURL returns the token endpoint.
func (a Authority) TokenURL() string {
	return a.base() + "/oauth2/v2.0/token"
}

// DeviceCodeURL returns the device authorization endpoint.
func (a Authority) DeviceCodeURL() string {
	return a.base() + "/oauth2/v2.0/devicecode"
}

// DiscoveryURL returns the OpenID Connect discovery document location.
func (a Authority) DiscoveryURL() string {
	return a.base() + "/v2.0/.well-known/openid-configuration"
}

// Issuer returns the expected id token issuer for the tenant.
func (a Authority) Issuer() string {
	return a.base() + "/v2.0"
}

// defaultHTTPClient is shared by credentials that were not given their own
// client. The token endpoint is latency-bound, not throughput-bound, so a
// single pooled client is enough.
var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// postTokenForm submits a form-encoded grant to the token endpoint and
// parses the response into a Token. Status >= 400 is parsed as the OAuth
// error object.
func postTokenForm(ctx context.Context, hc *http.Client, endpoint string, form url.Values) (*Token, error) {
	if hc == nil {
		hc = defaultHTTPClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Description: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseWireError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &Error{Kind: KindUnknown, Description: "decode token response: " + err.Error(), Err: err}
	}
	if tr.AccessToken == "" {
		return nil, &Error{Kind: KindUnknown, Description: "token response missing access_token"}
	}

	return tr.token(), nil
}
