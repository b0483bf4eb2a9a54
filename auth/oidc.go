package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwksCacheTTL bounds how long fetched signing keys are trusted before a
// re-fetch.
const jwksCacheTTL = 24 * time.Hour

// discoveryDocument is the subset of the OIDC discovery metadata the
// validator needs.
type discoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// jwksDocument is the JSON Web Key Set wire shape, RSA keys only.
type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// IDTokenValidator verifies id tokens against the tenant's published
// signing keys. Keys are fetched through the discovery document and cached
// for jwksCacheTTL.
type IDTokenValidator struct {
	authority Authority
	clientID  string
	hc        *http.Client

	mu        sync.Mutex
	issuer    string
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewIDTokenValidator builds a validator for id tokens issued to clientID
// by the authority's tenant.
func NewIDTokenValidator(authority Authority, clientID string, hc *http.Client) *IDTokenValidator {
	if hc == nil {
		hc = defaultHTTPClient
	}
	return &IDTokenValidator{authority: authority, clientID: clientID, hc: hc}
}

// Validate checks the id token's RS256 signature, issuer, audience, time
// claims, and nonce. Any failure is fatal for the surrounding flow.
func (v *IDTokenValidator) Validate(ctx context.Context, rawIDToken, nonce string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(rawIDToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("id token header has no kid")
		}
		return v.signingKey(ctx, kid)
	})
	if err != nil {
		return nil, &Error{Kind: KindIDTokenValidation, Description: err.Error(), Err: err}
	}

	issuer, _ := claims["iss"].(string)
	expected := v.expectedIssuer()
	if issuer == "" || issuer != expected {
		return nil, &Error{Kind: KindIDTokenValidation, Description: fmt.Sprintf("issuer %q does not match %q", issuer, expected)}
	}

	if nonce != "" {
		got, _ := claims["nonce"].(string)
		if got != nonce {
			return nil, &Error{Kind: KindIDTokenValidation, Description: "nonce mismatch"}
		}
	}

	return claims, nil
}

// expectedIssuer prefers the discovery document's issuer, falling back to
// the authority-derived value when discovery has not run.
func (v *IDTokenValidator) expectedIssuer() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.issuer != "" {
		return v.issuer
	}
	return v.authority.Issuer()
}

// signingKey returns the RSA public key for kid, refreshing the JWKS when
// the cache is stale or the kid is unknown.
func (v *IDTokenValidator) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	key, ok := v.keys[kid]
	stale := time.Since(v.fetchedAt) > jwksCacheTTL
	v.mu.Unlock()

	if ok && !stale {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing key with kid %q", kid)
	}
	return key, nil
}

// refreshKeys fetches the discovery document and the key set it points at.
func (v *IDTokenValidator) refreshKeys(ctx context.Context) error {
	var disco discoveryDocument
	if err := v.getJSON(ctx, v.authority.DiscoveryURL(), &disco); err != nil {
		return fmt.Errorf("fetch discovery document: %w", err)
	}
	if disco.JWKSURI == "" {
		return fmt.Errorf("discovery document has no jwks_uri")
	}

	var jwks jwksDocument
	if err := v.getJSON(ctx, disco.JWKSURI, &jwks); err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("jwks contains no usable RSA keys")
	}

	v.mu.Lock()
	v.issuer = disco.Issuer
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

// getJSON fetches url and decodes the body into out.
func (v *IDTokenValidator) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// rsaKeyFromJWK decodes the base64url modulus and exponent of a JWK.
func rsaKeyFromJWK(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}

// OpenIDCredential is an authorization-code flow that additionally
// validates the id token that accompanies the first token response.
type OpenIDCredential struct {
	inner     *AuthorizationCodeCredential
	validator *IDTokenValidator
	nonce     string

	mu        sync.Mutex
	validated bool
}

// NewOpenIDCredential builds an OpenID Connect flow. nonce must be the
// value sent on the authorization URL.
func NewOpenIDCredential(tenant, clientID, code, redirectURI, nonce string, clientAuth ClientAuth, proofKey *ProofKey, scopes []string, opts ...Option) (*OpenIDCredential, error) {
	inner, err := NewAuthorizationCodeCredential(tenant, clientID, code, redirectURI, clientAuth, proofKey, scopes, opts...)
	if err != nil {
		return nil, err
	}
	return &OpenIDCredential{
		inner:     inner,
		validator: NewIDTokenValidator(inner.authority, clientID, inner.hc),
		nonce:     nonce,
	}, nil
}

// GetToken redeems the code and validates the returned id token once. A
// validation failure evicts the cached token and is fatal.
func (c *OpenIDCredential) GetToken(ctx context.Context) (*Token, error) {
	tok, err := c.inner.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	validated := c.validated
	c.mu.Unlock()
	if validated || tok.IDToken == "" {
		return tok, nil
	}

	if _, err := c.validator.Validate(ctx, tok.IDToken, c.nonce); err != nil {
		c.inner.cache.Evict(c.inner.key)
		return nil, err
	}

	c.mu.Lock()
	c.validated = true
	c.mu.Unlock()
	return tok, nil
}
