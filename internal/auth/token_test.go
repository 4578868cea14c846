package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenValidateRoundTrip(t *testing.T) {
	tok := NewTokens([]byte("test-secret"))

	signed, err := tok.Issue("user-uuid-1")
	require.NoError(t, err)

	uuid, err := tok.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-uuid-1", uuid)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	signed, err := NewTokens([]byte("secret-a")).Issue("u1")
	require.NoError(t, err)

	_, err = NewTokens([]byte("secret-b")).Validate(signed)
	require.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now().Add(-48 * time.Hour)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = NewTokens(secret).Validate(signed)
	require.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = NewTokens(secret).Validate(signed)
	require.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewTokens([]byte("secret")).Validate("not-a-token")
	require.Error(t, err)
}
