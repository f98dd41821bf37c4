package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeOperate grants access to the mutating edge endpoints.
const ScopeOperate = "edges:operate"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and missing claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for tokens past their exp claim.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the payload of an operator token.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// OperatorClaims is the verified content of an operator token.
type OperatorClaims struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

// IssueOperatorToken signs an HS256 token for subject valid for ttl.
func IssueOperatorToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("auth secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}
	claims := Claims{
		Scope: ScopeOperate,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyOperatorToken checks signature, expiry and scope as of now.
func VerifyOperatorToken(token string, secret []byte, now time.Time) (OperatorClaims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return OperatorClaims{}, ErrExpiredToken
	case err != nil:
		return OperatorClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return OperatorClaims{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	if claims.Scope != ScopeOperate {
		return OperatorClaims{}, fmt.Errorf("%w: scope %q", ErrInvalidToken, claims.Scope)
	}
	return OperatorClaims{Subject: claims.Subject, Scope: claims.Scope, ExpiresAt: claims.ExpiresAt.Time}, nil
}
