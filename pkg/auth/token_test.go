package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenGenerator_SessionToken(t *testing.T) {
	tg := NewTokenGenerator(0)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := tg.SessionToken()
		if err != nil {
			t.Fatalf("SessionToken() error = %v", err)
		}
		if err := ValidateCredentialFormat(token); err != nil {
			t.Fatalf("generated token %q fails its own format check: %v", token, err)
		}
		if seen[token] {
			t.Fatalf("duplicate session token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestTokenGenerator_APIToken(t *testing.T) {
	tg := NewTokenGenerator(16)

	secret, ident, err := tg.APIToken()
	if err != nil {
		t.Fatalf("APIToken() error = %v", err)
	}
	if secret == ident {
		t.Error("secret and ident must differ")
	}
	if len(ident) != IdentLength*2 {
		t.Errorf("ident length = %d, want %d", len(ident), IdentLength*2)
	}
	// 16 bytes -> 22 base64url chars without padding
	if len(secret) != 22 {
		t.Errorf("secret length = %d, want 22", len(secret))
	}
}

func TestTokenGenerator_PasteID(t *testing.T) {
	tg := NewTokenGenerator(0)

	id, err := tg.PasteID(8)
	if err != nil {
		t.Fatalf("PasteID() error = %v", err)
	}
	if len(id) != 8 {
		t.Errorf("PasteID length = %d, want 8", len(id))
	}
	for _, c := range id {
		if !strings.ContainsRune(idAlphabet, c) {
			t.Errorf("PasteID contains %q outside the alphabet", c)
		}
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("secret")
	if len(a) != 64 {
		t.Errorf("HashToken length = %d, want 64", len(a))
	}
	if a != HashToken("secret") {
		t.Error("HashToken is not deterministic")
	}
	if a == HashToken("secret2") {
		t.Error("different tokens hash the same")
	}
}

func TestValidateCredentialFormat(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"base64url", "abcDEF012_-", false},
		{"empty", "", true},
		{"space", "abc def", true},
		{"padding", "abc=", true},
		{"unicode", "tökén", true},
		{"too long", strings.Repeat("a", MaxCredentialLength+1), true},
		{"max length", strings.Repeat("a", MaxCredentialLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCredentialFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedCredential) {
				t.Errorf("error %v does not wrap ErrMalformedCredential", err)
			}
		})
	}
}
