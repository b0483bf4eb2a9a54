package auth

import (
	"context"
	"net/url"
)

// UsernamePasswordCredential executes the resource owner password
// credentials grant. It only works for accounts without MFA or federation;
// prefer an interactive flow where possible.
type UsernamePasswordCredential struct {
	credentialBase
	username string
	password string
}

// NewUsernamePasswordCredential builds a ROPC flow for a public client.
func NewUsernamePasswordCredential(tenant, clientID, username, password string, scopes []string, opts ...Option) (*UsernamePasswordCredential, error) {
	if clientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "client_id is required"}
	}
	if username == "" || password == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "username and password are required"}
	}
	return &UsernamePasswordCredential{
		credentialBase: newCredentialBase(tenant, clientID, scopes, applyOptions(opts)),
		username:       username,
		password:       password,
	}, nil
}

// GetToken returns a valid token, executing the grant on cache miss.
func (c *UsernamePasswordCredential) GetToken(ctx context.Context) (*Token, error) {
	return c.getToken(ctx, c.grant, nil)
}

func (c *UsernamePasswordCredential) grant(ctx context.Context) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", c.clientID)
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("scope", c.scopeString())
	return postTokenForm(ctx, c.hc, c.authority.TokenURL(), form)
}
