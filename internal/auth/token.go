package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/masquerade-labs/masquerade/internal/apperr"
)

// Issuer is the constant application name every issued token carries
// (spec §4.3 "issuer (constant application name)").
const Issuer = "masquerade"

// TokenTTL is the fixed lifetime of an issued token (spec §4.3 "expiry
// (issued-at plus 24 hours)").
const TokenTTL = 24 * time.Hour

// Claims is the signed-token payload: issuer, issued-at, not-before and
// expiry come from jwt.RegisteredClaims; Subject carries the user's
// uuid.
type Claims struct {
	jwt.RegisteredClaims
}

// Tokens issues and validates the HS256 signed tokens of spec §4.3.
type Tokens struct {
	secret []byte
}

func NewTokens(secret []byte) Tokens {
	return Tokens{secret: secret}
}

// Issue mints a signed token for the user identified by uuid.
func (t Tokens) Issue(uuid string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   uuid,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.BackingStoreFailure, "failed to sign token", err)
	}
	return signed, nil
}

// Validate parses and verifies a signed token, returning the user uuid
// (the Subject claim) on success. Any issuer mismatch, expiry, or
// signature failure is reported as Unauthorized without distinguishing
// the cause (spec §4.3 "rejects any token whose issuer does not match,
// or whose expiry has passed, or whose signature fails").
func (t Tokens) Validate(tokenString string) (uuid string, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return "", apperr.New(apperr.Unauthorized, "invalid or expired token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", apperr.New(apperr.Unauthorized, "invalid or expired token")
	}
	return claims.Subject, nil
}
