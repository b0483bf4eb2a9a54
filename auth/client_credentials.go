package auth

import (
	"context"
	"net/url"
)

// ClientSecretCredential authenticates the application itself (no user)
// with a shared secret, via the client_credentials grant.
type ClientSecretCredential struct {
	credentialBase
	secret string
}

// NewClientSecretCredential builds a client-credentials flow for the given
// tenant and application.
func NewClientSecretCredential(tenant, clientID, secret string, scopes []string, opts ...Option) (*ClientSecretCredential, error) {
	if clientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_id is required"}
	}
	if secret == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_secret is required"}
	}
	return &ClientSecretCredential{
		credentialBase: newCredentialBase(tenant, clientID, scopes, applyOptions(opts)),
		secret:         secret,
	}, nil
}

// GetToken returns a valid token, executing the grant on cache miss.
func (c *ClientSecretCredential) GetToken(ctx context.Context) (*Token, error) {
	return c.getToken(ctx, c.grant, c.extendForm)
}

func (c *ClientSecretCredential) grant(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.secret)
	form.Set("scope", c.scopeString())
	return postTokenForm(ctx, c.hc, c.authority.TokenURL(), form)
}

func (c *ClientSecretCredential) extendForm(form url.Values) {
	form.Set("client_secret", c.secret)
}

// ClientCertificateCredential authenticates the application with a signed
// JWT assertion instead of a shared secret.
type ClientCertificateCredential struct {
	credentialBase
	cert *ClientCertificate
}

// NewClientCertificateCredential builds a certificate-based
// client-credentials flow.
func NewClientCertificateCredential(tenant, clientID string, cert *ClientCertificate, scopes []string, opts ...Option) (*ClientCertificateCredential, error) {
	if clientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_id is required"}
	}
	if cert == nil || cert.Cert == nil || cert.Key == nil {
		return nil, &Error{Kind: KindMissingCredential, Description: "client certificate and key are required"}
	}
	return &ClientCertificateCredential{
		credentialBase: newCredentialBase(tenant, clientID, scopes, applyOptions(opts)),
		cert:           cert,
	}, nil
}

// GetToken returns a valid token, executing the grant on cache miss.
func (c *ClientCertificateCredential) GetToken(ctx context.Context) (*Token, error) {
	return c.getToken(ctx, c.grant, c.extendForm)
}

func (c *ClientCertificateCredential) grant(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("scope", c.scopeString())
	if err := c.attachAssertion(form); err != nil {
		return nil, err
	}
	return postTokenForm(ctx, c.hc, c.authority.TokenURL(), form)
}

func (c *ClientCertificateCredential) extendForm(form url.Values) {
	// Best effort: a failed signature here surfaces on the wire as
	// invalid_client.
	_ = c.attachAssertion(form)
}

func (c *ClientCertificateCredential) attachAssertion(form url.Values) error {
	assertion, err := c.cert.assertion(c.clientID, c.authority.TokenURL())
	if err != nil {
		return &Error{Kind: KindInvalidClient, Description: err.Error(), Err: err}
	}
	form.Set("client_assertion_type", clientAssertionType)
	form.Set("client_assertion", assertion)
	return nil
}
