package tokens_test

import (
	"encoding/base32"
	"encoding/base64"
	"testing"

	tokens "github.com/dropDatabas3/trustcore/internal/security/token"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := tokens.GenerateOpaqueToken(64)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken err: %v", err)
	}
	b, err := tokens.GenerateOpaqueToken(64)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken err: %v", err)
	}
	if a == b {
		t.Fatal("two tokens must differ")
	}

	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("not base64url: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("entropy: got %d bytes, want 64", len(raw))
	}
}

func TestGenerateBase32Secret(t *testing.T) {
	s, err := tokens.GenerateBase32Secret(20)
	if err != nil {
		t.Fatalf("GenerateBase32Secret err: %v", err)
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
	if err != nil {
		t.Fatalf("not base32: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("entropy: got %d bytes, want 20", len(raw))
	}
}

func TestSHA256Base64URL(t *testing.T) {
	a := tokens.SHA256Base64URL("refresh-token-1")
	b := tokens.SHA256Base64URL("refresh-token-1")
	c := tokens.SHA256Base64URL("refresh-token-2")

	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == c {
		t.Fatal("different inputs must hash differently")
	}
	if len(a) != 43 { // 32 bytes en base64url sin padding
		t.Fatalf("unexpected hash length %d", len(a))
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !tokens.ConstantTimeEquals("key", "key") {
		t.Fatal("equal strings must match")
	}
	if tokens.ConstantTimeEquals("key", "kex") {
		t.Fatal("different strings must not match")
	}
	if tokens.ConstantTimeEquals("key", "key2") {
		t.Fatal("different lengths must not match")
	}
}
