package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Unix(1_700_000_000, 0)

	token, err := IssueOperatorToken(secret, "ops", time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := VerifyOperatorToken(token, secret, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "ops" || claims.Scope != ScopeOperate || !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func sign(t *testing.T, method jwt.SigningMethod, claims Claims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestOperatorTokenRejections(t *testing.T) {
	secret := []byte("s3cret")
	now := time.Unix(1_700_000_000, 0)
	token, err := IssueOperatorToken(secret, "ops", time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := VerifyOperatorToken(token, secret, now.Add(2*time.Hour)); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if _, err := VerifyOperatorToken(token, []byte("other"), now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
	if _, err := VerifyOperatorToken(token[:strings.LastIndex(token, ".")], secret, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected format error, got %v", err)
	}

	exp := jwt.NewNumericDate(now.Add(time.Hour))
	cases := map[string]string{
		"unscoped":   sign(t, jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: exp}}, secret),
		"no subject": sign(t, jwt.SigningMethodHS256, Claims{Scope: ScopeOperate, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}, secret),
		"no expiry":  sign(t, jwt.SigningMethodHS256, Claims{Scope: ScopeOperate, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}}, secret),
		"hs512":      sign(t, jwt.SigningMethodHS512, Claims{Scope: ScopeOperate, RegisteredClaims: jwt.RegisteredClaims{Subject: "ops", ExpiresAt: exp}}, secret),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := VerifyOperatorToken(tok, secret, now); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token, got %v", err)
			}
		})
	}

	if _, err := IssueOperatorToken(nil, "ops", time.Hour, now); err == nil {
		t.Fatal("expected an error without a secret")
	}
}
