package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)

	token, exp, err := tm.GenerateToken("user-1", domain.RoleManager)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !exp.After(time.Now().Add(29 * time.Minute)) {
		t.Fatalf("expiry should honor the configured ttl, got %v", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != domain.RoleManager {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 30).GenerateToken("user-1", domain.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("secret-b", 30).ParseToken(token); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := tm.ParseToken(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, _, err := tm.GenerateToken("user-1", domain.Role("SUPERADMIN"))
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatal("unknown role in claims must be rejected")
	}
}

func TestTokenManagerDefaultsTTL(t *testing.T) {
	tm := NewTokenManager("secret", 0)
	_, exp, err := tm.GenerateToken("user-1", domain.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !exp.After(time.Now().Add(59 * time.Minute)) {
		t.Fatalf("zero ttl should fall back to an hour, got %v", exp)
	}
}
