package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ProofKey is a PKCE verifier/challenge pair (RFC 7636). It is generated
// once per authorization and held until the code is exchanged.
type ProofKey struct {
	// Verifier is the url-safe secret sent with the token request.
	Verifier string

	// Challenge is the S256 digest of the verifier sent with the
	// authorization request.
	Challenge string
}

// ChallengeMethod is the only challenge transform the engine emits.
const ChallengeMethod = "S256"

// NewProofKey generates a fresh PKCE pair from 32 bytes of CSPRNG output.
func NewProofKey() (*ProofKey, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	return &ProofKey{
		Verifier:  verifier,
		Challenge: challengeFor(verifier),
	}, nil
}

// challengeFor computes base64url-nopad(sha256(verifier)).
func challengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
