package auth

import (
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // x5t is defined as the SHA-1 certificate thumbprint
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// assertionLifetime bounds how long a client assertion stays valid.
const assertionLifetime = 10 * time.Minute

// ClientCertificate is the certificate and key pair a confidential client
// authenticates with instead of a shared secret.
type ClientCertificate struct {
	Cert *x509.Certificate
	Key  *rsa.PrivateKey
}

// ParseClientCertificate loads a certificate/key pair from DER bytes and a
// PKCS#1 or PKCS#8 encoded private key.
func ParseClientCertificate(certDER, keyDER []byte) (*ClientCertificate, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	key, err := parseRSAPrivateKey(keyDER)
	if err != nil {
		return nil, err
	}
	return &ClientCertificate{Cert: cert, Key: key}, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want *rsa.PrivateKey", parsed)
	}
	return key, nil
}

// thumbprint returns the base64url SHA-1 certificate thumbprint used in the
// x5t JWT header.
func (c *ClientCertificate) thumbprint() string {
	sum := sha1.Sum(c.Cert.Raw) //nolint:gosec // protocol-mandated digest
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// assertion signs a short-lived RS256 JWT proving possession of the
// certificate's private key, addressed to the token endpoint.
func (c *ClientCertificate) assertion(clientID, tokenURL string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"aud": tokenURL,
		"iss": clientID,
		"sub": clientID,
		"jti": uuid.NewString(),
		"nbf": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["x5t"] = c.thumbprint()

	signed, err := token.SignedString(c.Key)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return signed, nil
}
