package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Credential produces valid bearer tokens on demand.
//
// Implementations cache tokens and refresh them transparently; GetToken
// never returns a token whose IsExpired is true.
type Credential interface {
	GetToken(ctx context.Context) (*Token, error)
}

// ForceRefresh controls whether GetToken may serve from the cache.
type ForceRefresh int

const (
	// ForceRefreshNever serves the cache whenever it holds a valid token.
	ForceRefreshNever ForceRefresh = iota
	// ForceRefreshOnce ignores the cache for the next acquisition, then
	// reverts to ForceRefreshNever.
	ForceRefreshOnce
	// ForceRefreshAlways never serves from the cache.
	ForceRefreshAlways
)

// Options configures a credential's shared machinery.
type Options struct {
	// AuthorityHost overrides the login host. Defaults to
	// DefaultAuthorityHost.
	AuthorityHost string

	// Cache overrides the process-wide token cache. Mainly for tests.
	Cache *TokenCache

	// HTTPClient overrides the HTTP client used for token endpoint calls.
	HTTPClient *http.Client

	// ForceRefresh sets the initial refresh policy.
	ForceRefresh ForceRefresh
}

// Option mutates Options.
type Option func(*Options)

// WithAuthorityHost points the credential at a different login host
// (sovereign clouds, test servers).
func WithAuthorityHost(host string) Option {
	return func(o *Options) { o.AuthorityHost = host }
}

// WithCache gives the credential its own token cache instead of the
// process-wide one.
func WithCache(c *TokenCache) Option {
	return func(o *Options) { o.Cache = c }
}

// WithHTTPClient sets the HTTP client used to reach the authority.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Options) { o.HTTPClient = hc }
}

// WithForceRefresh sets the initial cache bypass policy.
func WithForceRefresh(f ForceRefresh) Option {
	return func(o *Options) { o.ForceRefresh = f }
}

// applyOptions folds opts into a populated Options value.
func applyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// credentialBase carries the state shared by every grant: the authority,
// the cache slot, and the force-refresh policy. Grant implementations embed
// it and call getToken with their grant executor.
type credentialBase struct {
	authority Authority
	clientID  string
	scopes    []string
	hc        *http.Client
	cache     *TokenCache
	key       CacheKey

	mu    sync.Mutex
	force ForceRefresh
}

// newCredentialBase wires the shared machinery from options.
func newCredentialBase(tenant, clientID string, scopes []string, o Options) credentialBase {
	authority := NewAuthority(tenant)
	if o.AuthorityHost != "" {
		authority.Host = o.AuthorityHost
	}
	cache := o.Cache
	if cache == nil {
		cache = sharedCache
	}
	return credentialBase{
		authority: authority,
		clientID:  clientID,
		scopes:    scopes,
		hc:        o.HTTPClient,
		cache:     cache,
		key:       NewCacheKey(authority, clientID, scopes),
		force:     o.ForceRefresh,
	}
}

// SetForceRefresh changes the cache bypass policy for subsequent
// acquisitions.
func (b *credentialBase) SetForceRefresh(f ForceRefresh) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.force = f
}

// currentForce reads the policy under the lock.
func (b *credentialBase) currentForce() ForceRefresh {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.force
}

// resetOnce reverts ForceRefreshOnce to ForceRefreshNever after an
// acquisition consumed it.
func (b *credentialBase) resetOnce() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.force == ForceRefreshOnce {
		b.force = ForceRefreshNever
	}
}

// scopeString renders the scope list for the wire.
func (b *credentialBase) scopeString() string {
	return strings.Join(b.scopes, " ")
}

// refreshGrant executes the refresh_token grant. extend lets confidential
// clients attach their client secret or assertion.
func (b *credentialBase) refreshGrant(ctx context.Context, refreshToken string, extend func(url.Values)) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", b.clientID)
	form.Set("refresh_token", refreshToken)
	if s := b.scopeString(); s != "" {
		form.Set("scope", s)
	}
	if extend != nil {
		extend(form)
	}
	return postTokenForm(ctx, b.hc, b.authority.TokenURL(), form)
}

// getToken implements the acquisition contract shared by all grants:
//
//  1. honor the force-refresh policy against the cache;
//  2. collapse concurrent acquisitions for the same cache key;
//  3. renew silently through the refresh token when one is cached;
//  4. otherwise execute the configured grant;
//  5. store the result and consume a ForceRefreshOnce.
//
// grant may be nil for one-shot grants that cannot run again without user
// interaction; an expired cache entry then surfaces as KindExpired.
// extend is passed through to the implicit refresh grant.
func (b *credentialBase) getToken(ctx context.Context, grant func(context.Context) (*Token, error), extend func(url.Values)) (*Token, error) {
	force := b.currentForce()

	if force == ForceRefreshNever {
		if tok, ok := b.cache.Get(b.key); ok && !tok.IsExpired() {
			return tok, nil
		}
	}

	tok, err := b.cache.acquire(b.key, func() (*Token, error) {
		// Re-check inside the flight: a concurrent caller may have
		// refreshed while this one waited.
		cached, ok := b.cache.Get(b.key)
		if force == ForceRefreshNever && ok && !cached.IsExpired() {
			return cached, nil
		}

		if force != ForceRefreshAlways && ok && cached.RefreshToken != "" {
			fresh, rerr := b.refreshGrant(ctx, cached.RefreshToken, extend)
			if rerr == nil {
				// Servers may rotate the refresh token; keep the old one
				// when none came back.
				if fresh.RefreshToken == "" {
					fresh.RefreshToken = cached.RefreshToken
				}
				b.cache.Put(b.key, fresh)
				return fresh, nil
			}
			// One refresh attempt only. Evict so the next call runs the
			// configured grant from scratch.
			b.cache.Evict(b.key)
			if grant == nil {
				return nil, &Error{Kind: KindExpired, Description: "token expired and refresh failed", Err: rerr}
			}
		}

		if grant == nil {
			if ok {
				return nil, &Error{Kind: KindExpired, Description: "token expired and no refresh token is held"}
			}
			return nil, &Error{Kind: KindInteractionRequired, Description: "no cached token; interactive sign-in required"}
		}

		fresh, gerr := grant(ctx)
		if gerr != nil {
			return nil, gerr
		}
		b.cache.Put(b.key, fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}

	if force == ForceRefreshOnce {
		b.resetOnce()
	}
	return tok, nil
}
