package util

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	tok, err := GenerateToken("secret", "attendly", "org-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken("secret", "attendly", tok)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "org-1" {
		t.Errorf("subject = %q, want org-1", claims.Subject)
	}

	if _, err := ParseToken("other-secret", "attendly", tok); err == nil {
		t.Error("wrong secret should be rejected")
	}
	if _, err := ParseToken("secret", "someone-else", tok); err == nil {
		t.Error("wrong issuer should be rejected")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tok, _ := GenerateToken("secret", "", "org-1", -time.Minute)
	if _, err := ParseToken("secret", "", tok); err == nil {
		t.Error("expired token should be rejected")
	}
}
