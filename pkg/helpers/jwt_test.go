package helpers

import (
	"testing"
	"time"
)

func testManager() *JWTManager {
	return NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 168*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager()
	token, exp, err := m.GenerateAccessToken("user-1", "priya@example.in")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if time.Until(exp) > 15*time.Minute || time.Until(exp) < 14*time.Minute {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	claims, err := m.ParseAccessToken(token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "priya@example.in" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Type != "" {
		t.Fatalf("access token must not carry the refresh marker, got %q", claims.Type)
	}
	if claims.ID == "" {
		t.Fatal("token must carry a jti")
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := testManager()
	token, _, err := m.GenerateRefreshToken("user-2", "arjun@example.in")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	claims, err := m.ParseRefreshToken(token)
	if err != nil {
		t.Fatalf("ParseRefreshToken: %v", err)
	}
	if claims.UserID != "user-2" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Type != TokenTypeRefresh {
		t.Fatalf("refresh token must carry the refresh marker, got %q", claims.Type)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m := testManager()
	access, _, _ := m.GenerateAccessToken("user-3", "a@b.in")
	refresh, _, _ := m.GenerateRefreshToken("user-3", "a@b.in")

	if _, err := m.ParseAccessToken(refresh); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := m.ParseRefreshToken(access); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

// Even with both kinds signed by the same secret the type marker keeps
// them apart.
func TestTypeMarkerWithSharedSecret(t *testing.T) {
	m := NewJWTManager("shared", "shared", time.Hour, time.Hour)
	access, _, _ := m.GenerateAccessToken("user-4", "a@b.in")
	refresh, _, _ := m.GenerateRefreshToken("user-4", "a@b.in")

	if _, err := m.ParseAccessToken(refresh); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := m.ParseRefreshToken(access); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	token, _, err := m.GenerateAccessToken("user-5", "a@b.in")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := m.ParseAccessToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := testManager()
	other := NewJWTManager("other-access", "other-refresh", 15*time.Minute, time.Hour)

	token, _, _ := m.GenerateAccessToken("user-6", "a@b.in")
	if _, err := other.ParseAccessToken(token); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	m := testManager()
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.ParseAccessToken(tok); err == nil {
			t.Fatalf("garbage token %q accepted", tok)
		}
	}
}
