package utils

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := GenerateJWT("user123", "a@b.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "user123" {
		t.Errorf("UserID = %q, want user123", claims.UserID)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Email = %q, want a@b.com", claims.Email)
	}
}

func TestJWTWrongSecretRejected(t *testing.T) {
	token, err := GenerateJWT("user123", "a@b.com", "secret-one", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ValidateJWT(token, "secret-two"); err == nil {
		t.Fatal("expected validation to fail with the wrong secret")
	}
}

func TestJWTExpiredRejected(t *testing.T) {
	token, err := GenerateJWT("user123", "a@b.com", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	if got := ExtractTokenFromHeader("Bearer abc123"); got != "abc123" {
		t.Errorf("ExtractTokenFromHeader = %q, want abc123", got)
	}
	if got := ExtractTokenFromHeader(""); got != "" {
		t.Errorf("empty header: got %q", got)
	}
	if got := ExtractTokenFromHeader("Basic abc123"); got != "" {
		t.Errorf("non-bearer header: got %q", got)
	}
	if got := ExtractTokenFromHeader("Bearer"); got != "" {
		t.Errorf("malformed header: got %q", got)
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Error("expected matching password to verify")
	}
	if CheckPassword("wrong password", hash) {
		t.Error("expected non-matching password to fail")
	}
}
