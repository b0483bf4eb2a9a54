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

// deviceCodeGrantType is the token request grant_type for device flow
// polling (RFC 8628).
const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// slowDownStep is added to the polling interval on a slow_down response.
const slowDownStep = 5 * time.Second

// DeviceAuthorization is the first-step response of the device code flow.
// The UserCode is shown to the user; the device polls with the DeviceCode.
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
	Message         string `json:"message"`
}

// DeviceCodeCredential signs in input-constrained devices: the user enters
// a short code on another machine while the device polls the token
// endpoint.
type DeviceCodeCredential struct {
	credentialBase
}

// NewDeviceCodeCredential builds a device code flow for a public client.
func NewDeviceCodeCredential(tenant, clientID string, scopes []string, opts ...Option) (*DeviceCodeCredential, error) {
	if clientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_id is required"}
	}
	return &DeviceCodeCredential{
		credentialBase: newCredentialBase(tenant, clientID, scopes, applyOptions(opts)),
	}, nil
}

// GetToken serves a cached or silently refreshed token. When neither is
// available the caller must run Start and Poll; that requirement surfaces
// as KindInteractionRequired.
func (c *DeviceCodeCredential) GetToken(ctx context.Context) (*Token, error) {
	return c.getToken(ctx, nil, nil)
}

// Start requests device and user codes from the device authorization
// endpoint.
func (c *DeviceCodeCredential) Start(ctx context.Context) (*DeviceAuthorization, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("scope", c.scopeString())

	hc := c.hc
	if hc == nil {
		hc = defaultHTTPClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authority.DeviceCodeURL(), strings.NewReader(form.Encode()))
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

	var da DeviceAuthorization
	if err := json.Unmarshal(body, &da); err != nil {
		return nil, &Error{Kind: KindUnknown, Description: "decode device authorization: " + err.Error(), Err: err}
	}
	if da.Interval <= 0 {
		da.Interval = 5
	}
	return &da, nil
}

// Poll posts to the token endpoint every interval until the user completes
// sign-in, the flow fails terminally, or ctx is cancelled. The granted
// token is cached before return.
func (c *DeviceCodeCredential) Poll(ctx context.Context, da *DeviceAuthorization) (*Token, error) {
	interval := time.Duration(da.Interval) * time.Second
	deadline := time.Now().Add(time.Duration(da.ExpiresIn) * time.Second)

	for {
		tok, err := c.pollOnce(ctx, da.DeviceCode)
		if err == nil {
			c.cache.Put(c.key, tok)
			return tok, nil
		}

		switch wireCode(err) {
		case "authorization_pending":
			// keep polling
		case "slow_down":
			interval += slowDownStep
		default:
			// authorization_declined, expired_token, bad_verification_code,
			// and anything unexpected are terminal.
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, &Error{Kind: KindExpired, Description: "device code expired before the user signed in"}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// wireCode extracts the raw OAuth error code from err, or "".
func wireCode(err error) string {
	ae, ok := err.(*Error)
	if !ok {
		return ""
	}
	return ae.Code
}

// pollOnce issues a single token request for the device code.
func (c *DeviceCodeCredential) pollOnce(ctx context.Context, deviceCode string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", deviceCodeGrantType)
	form.Set("client_id", c.clientID)
	form.Set("device_code", deviceCode)
	return postTokenForm(ctx, c.hc, c.authority.TokenURL(), form)
}
