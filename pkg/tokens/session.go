package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed admin session: a random 256-bit payload in the
// jti claim plus the issue time. Both are covered by the HS256 signature.
type SessionClaims struct {
	jwt.RegisteredClaims
}

var (
	ErrMalformed    = errors.New("session token malformed")
	ErrBadSignature = errors.New("session token signature mismatch")
	ErrExpired      = errors.New("session token expired")
)

func NewPayload() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session payload: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func SignSession(payload string, issuedAt time.Time, secret []byte) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       payload,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// SessionFromToken verifies the signature and the age of the token. A token
// is valid while now - iat <= maxAge.
func SessionFromToken(tokenStr string, secret []byte, now time.Time, maxAge time.Duration) (*SessionClaims, error) {
	var claims SessionClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	if !tkn.Valid {
		return nil, ErrBadSignature
	}

	if claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}
	if now.Sub(claims.IssuedAt.Time) > maxAge {
		return nil, ErrExpired
	}
	return &claims, nil
}
