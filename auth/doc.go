// Package auth implements credential types for the Microsoft identity
// platform.
//
// Each OAuth2/OIDC grant is a Credential: a value that produces valid
// bearer tokens on demand, caching them in a process-wide TokenCache and
// refreshing them silently through the refresh_token grant when possible.
//
// Supported grants:
//   - Authorization code (client secret, client certificate, or PKCE)
//   - Client credentials (client secret or certificate assertion)
//   - Device code (two-step, with a cancellable polling driver)
//   - Resource owner password credentials
//   - OpenID Connect (authorization code plus id-token validation)
//   - Environment selection from the conventional AZURE_* variables
//   - Static pre-existing bearer strings and x/oauth2 TokenSources
//
// Concurrent acquisitions for the same cache key are collapsed: when two
// callers observe an expired token at once, one refreshes while the other
// waits and reads the freshly cached value.
package auth
