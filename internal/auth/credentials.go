// Package auth implements the Credential Service of spec §4.3:
// password-based key derivation, constant-time verification, and
// HS256 signed-token issuance/validation for session continuity.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	hashSize   = 32
	// DefaultIterations matches the spec's documented default, kept for
	// parity with the original system. It is far below contemporary
	// recommendations (spec §9 Design Notes); deployments should set
	// api.pbkdf2_iterations to at least recommendedMinIterations.
	DefaultIterations     = 5
	recommendedMinIterations = 100_000
)

// Credentials derives and verifies the PBKDF2-HMAC-SHA256 secret hash
// described in spec §4.3. Iterations is configurable per the DESIGN
// NOTES instruction to not hard-code the weak default silently.
type Credentials struct {
	Iterations int
}

// NewCredentials constructs a Credentials deriver, logging a warning
// through log (which may be nil) when iterations falls below the
// recommended minimum.
func NewCredentials(iterations int, log *zap.Logger) Credentials {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if log != nil && iterations < recommendedMinIterations {
		log.Warn("pbkdf2 iteration count is below the recommended minimum",
			zap.Int("configured", iterations),
			zap.Int("recommended_minimum", recommendedMinIterations),
		)
	}
	return Credentials{Iterations: iterations}
}

// GenerateSalt returns a fresh 16-byte cryptographically random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Derive computes the PBKDF2-HMAC-SHA256 hash of secret under salt.
func (c Credentials) Derive(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, c.Iterations, hashSize, sha256.New)
}

// Hash derives and base64-encodes both salt and hash for a brand-new
// user (spec §3 "User" invariants).
func (c Credentials) Hash(secret string) (saltB64, hashB64 string, err error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", "", err
	}
	hash := c.Derive(secret, salt)
	return base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash), nil
}

// Verify reports whether secret derives to hashB64 under saltB64, using
// a constant-time comparison (spec §4.3 "Verification"). A malformed
// salt/hash is treated as a verification failure, never an error: the
// caller reports a generic unauthorized either way.
func (c Credentials) Verify(secret, saltB64, hashB64 string) bool {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}
	got := c.Derive(secret, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
