// Package pkce implements Proof Key for Code Exchange (RFC 7636) for the
// PlayKit device authorization flow.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Pair holds a PKCE code verifier and its derived S256 challenge.
// The pair is generated once per flow attempt, kept only in memory,
// and must never be reused across attempts.
type Pair struct {
	// Verifier is 32 random bytes encoded as base64url without padding
	// (43 characters). Disclosed to the server only at poll time.
	Verifier string

	// Challenge is BASE64URL(SHA256(ASCII(verifier))), sent to the server
	// at session initiation.
	Challenge string
}

// Generate creates a new PKCE pair using a cryptographically secure
// random source. An unavailable secure RNG is fatal; the error is not
// retryable.
func Generate() (Pair, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return Pair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(b)

	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
	}, nil
}

// Challenge derives the S256 code challenge from a verifier.
// It is deterministic and has no side effects.
func Challenge(verifier string) string {
	h := sha256.New()
	h.Write([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
