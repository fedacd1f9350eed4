package security

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Fatalf("wrong password accepted")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	token, err := NewUserToken("test-secret", "user-1", "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, errParse := ParseUserToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.UserID != "user-1" || claims.Email != "user@example.com" {
		t.Fatalf("claims = %q/%q", claims.UserID, claims.Email)
	}
}

func TestParseUserTokenRejectsBadInput(t *testing.T) {
	token, err := NewUserToken("secret-a", "user-1", "user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, errParse := ParseUserToken("secret-b", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("wrong secret = %v, want ErrInvalidToken", errParse)
	}

	expired, err := NewUserToken("secret-a", "user-1", "user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	if _, errParse := ParseUserToken("secret-a", expired); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expired token = %v, want ErrInvalidToken", errParse)
	}

	if _, errParse := ParseUserToken("secret-a", "not-a-token"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("garbage token = %v, want ErrInvalidToken", errParse)
	}
}

func TestNewUserTokenRequiresSecret(t *testing.T) {
	if _, err := NewUserToken("  ", "user-1", "user@example.com", time.Hour); err == nil {
		t.Fatalf("empty secret accepted")
	}
}

func TestNewSessionToken(t *testing.T) {
	a, errA := NewSessionToken()
	if errA != nil {
		t.Fatalf("session token: %v", errA)
	}
	b, errB := NewSessionToken()
	if errB != nil {
		t.Fatalf("session token: %v", errB)
	}
	if len(a) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Fatalf("two session tokens collided")
	}
}
