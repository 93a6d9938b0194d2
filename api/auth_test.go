package api

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAnonymousAuth(t *testing.T) {
	a := NewAnonymousAuth()
	for _, header := range []string{"", "Bearer whatever"} {
		userID, err := a.UserIDFromAuthHeader(header)
		if err != nil {
			t.Fatalf("header %q: %v", header, err)
		}
		if userID != "anonymous" {
			t.Fatalf("header %q: expected anonymous, got %q", header, userID)
		}
	}
}

func TestTestAuthValidToken(t *testing.T) {
	secret := []byte("shared-secret")
	a := NewTestAuth(secret)
	token := signHS256(t, secret, jwt.MapClaims{"sub": "user-1"})

	userID, err := a.UserIDFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %q", userID)
	}
}

func TestTestAuthRejectsBadSignature(t *testing.T) {
	a := NewTestAuth([]byte("right-secret"))
	token := signHS256(t, []byte("wrong-secret"), jwt.MapClaims{"sub": "user-1"})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestTestAuthMissingHeader(t *testing.T) {
	a := NewTestAuth([]byte("secret"))
	if _, err := a.UserIDFromAuthHeader(""); !errors.Is(err, errMissingAuthorization) {
		t.Fatalf("expected missing-authorization error, got %v", err)
	}
}

func TestTestAuthBadScheme(t *testing.T) {
	a := NewTestAuth([]byte("secret"))
	if _, err := a.UserIDFromAuthHeader("Basic dXNlcjpwYXNz"); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}
}

func TestTestAuthMissingSub(t *testing.T) {
	secret := []byte("secret")
	a := NewTestAuth(secret)
	token := signHS256(t, secret, jwt.MapClaims{"name": "nobody"})

	if _, err := a.UserIDFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expected error when sub claim is absent")
	}
}
