package auth

import (
	"context"
	"net/url"
)

// ClientAuth is the proof a confidential client attaches to token requests.
// Public clients using PKCE leave both fields unset.
type ClientAuth struct {
	// Secret is the client secret, when one is registered.
	Secret string

	// Certificate signs a JWT client assertion, when one is registered.
	Certificate *ClientCertificate
}

// AuthorizationCodeCredential redeems an authorization code obtained from a
// redirect for tokens, then renews silently through the refresh token.
//
// The code is redeemed at most once; after redemption, GetToken serves the
// cache and the implicit refresh grant.
type AuthorizationCodeCredential struct {
	credentialBase

	code        string
	redirectURI string
	clientAuth  ClientAuth
	proofKey    *ProofKey

	redeemed bool
}

// NewAuthorizationCodeCredential builds an authorization-code flow. A
// ProofKey must be the same pair whose challenge was sent on the
// authorization URL; pass nil when a client secret or certificate is used
// instead of PKCE.
func NewAuthorizationCodeCredential(tenant, clientID, code, redirectURI string, clientAuth ClientAuth, proofKey *ProofKey, scopes []string, opts ...Option) (*AuthorizationCodeCredential, error) {
	if clientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_id is required"}
	}
	if code == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "authorization code is required"}
	}
	if redirectURI == "" {
		return nil, &Error{Kind: KindInvalidRequest, Description: "redirect_uri is required"}
	}
	if clientAuth.Secret == "" && clientAuth.Certificate == nil && proofKey == nil {
		return nil, &Error{Kind: KindMissingCredential, Description: "a client secret, certificate, or PKCE proof key is required"}
	}
	if proofKey != nil && proofKey.Verifier == "" {
		return nil, &Error{Kind: KindInvalidRequest, Description: "PKCE proof key has no code verifier"}
	}
	return &AuthorizationCodeCredential{
		credentialBase: newCredentialBase(tenant, clientID, scopes, applyOptions(opts)),
		code:           code,
		redirectURI:    redirectURI,
		clientAuth:     clientAuth,
		proofKey:       proofKey,
	}, nil
}

// GetToken returns a valid token, redeeming the code on first use.
func (c *AuthorizationCodeCredential) GetToken(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	redeemed := c.redeemed
	c.mu.Unlock()

	// After redemption the code cannot run again; expiry without a refresh
	// token means a new sign-in.
	if redeemed {
		return c.getToken(ctx, nil, c.extendForm)
	}
	return c.getToken(ctx, c.redeem, c.extendForm)
}

func (c *AuthorizationCodeCredential) redeem(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("code", c.code)
	form.Set("redirect_uri", c.redirectURI)
	if s := c.scopeString(); s != "" {
		form.Set("scope", s)
	}
	if c.proofKey != nil {
		form.Set("code_verifier", c.proofKey.Verifier)
	}
	c.extendForm(form)

	tok, err := postTokenForm(ctx, c.hc, c.authority.TokenURL(), form)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.redeemed = true
	c.mu.Unlock()
	return tok, nil
}

func (c *AuthorizationCodeCredential) extendForm(form url.Values) {
	switch {
	case c.clientAuth.Secret != "":
		form.Set("client_secret", c.clientAuth.Secret)
	case c.clientAuth.Certificate != nil:
		if assertion, err := c.clientAuth.Certificate.assertion(c.clientID, c.authority.TokenURL()); err == nil {
			form.Set("client_assertion_type", clientAssertionType)
			form.Set("client_assertion", assertion)
		}
	}
}
