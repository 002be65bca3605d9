package auth

import (
	"testing"
	"time"
)

func testConfig() *TokenConfig {
	return &TokenConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "engage-sdk",
		Audience: "acme-site",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testConfig()

	token, err := GenerateToken(cfg, "visitor-1", "site-9")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.VisitorID != "visitor-1" || claims.SiteID != "site-9" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "visitor-1", "site-9")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	bad := testConfig()
	bad.Secret = []byte("other-secret")
	if _, err := ValidateToken(bad, token); err == nil {
		t.Fatal("expected validation error for wrong secret")
	}
}

func TestValidateTokenWrongAudience(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateToken(cfg, "visitor-1", "site-9")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	bad := testConfig()
	bad.Audience = "someone-else"
	if _, err := ValidateToken(bad, token); err == nil {
		t.Fatal("expected validation error for wrong audience")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := testConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, "visitor-1", "site-9")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected validation error for expired token")
	}
}
