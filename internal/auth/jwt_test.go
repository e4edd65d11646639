package auth

import (
	"testing"
	"time"
)

func newTestManager(accessExpiry time.Duration) *JWTManager {
	return NewJWTManager("test-secret", accessExpiry, 24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateAccessToken(42, "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Nickname != "alice" {
		t.Errorf("Nickname = %q", claims.Nickname)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	m := newTestManager(-time.Minute)

	token, err := m.GenerateAccessToken(42, "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err != ErrExpiredToken {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestAccessTokenWrongSecret(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewJWTManager("different-secret", time.Hour, 24*time.Hour)

	token, err := m.GenerateAccessToken(42, "alice@example.com", "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAccessTokenGarbage(t *testing.T) {
	m := newTestManager(time.Hour)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.ValidateAccessToken(tok); err != ErrInvalidToken {
			t.Errorf("ValidateAccessToken(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateRefreshToken(7)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	userID, err := m.ValidateRefreshToken(token)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	if userID != 7 {
		t.Errorf("userID = %d, want 7", userID)
	}
}

func TestRefreshTokenIsNotAccessToken(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateRefreshToken(7)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	// A refresh token parses as an access token but carries no user_id claim.
	claims, err := m.ValidateAccessToken(token)
	if err == nil && claims.UserID != 0 {
		t.Errorf("refresh token yielded user_id %d through access validation", claims.UserID)
	}
}
