package crypto

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"hex token", "4f2a9c0e1b7d"},
		{"unicode token", "токен-журнала"},
		{"near limit", strings.Repeat("a", 70)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashTokenWithCost(tt.token, bcrypt.MinCost)
			if err != nil {
				t.Fatalf("HashTokenWithCost failed: %v", err)
			}
			if !strings.HasPrefix(hash, "$2") {
				t.Errorf("hash should have bcrypt prefix, got %s", hash)
			}
			if !IsValidHash(hash) {
				t.Error("IsValidHash should accept generated hash")
			}
			if err := VerifyToken(tt.token, hash); err != nil {
				t.Errorf("VerifyToken failed: %v", err)
			}
			if err := VerifyToken(tt.token+"x", hash); !errors.Is(err, ErrTokenMismatch) {
				t.Errorf("expected ErrTokenMismatch, got %v", err)
			}
		})
	}
}

func TestHashTokenErrors(t *testing.T) {
	if _, err := HashToken(""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := HashToken(strings.Repeat("a", MaxTokenLength+1)); !errors.Is(err, ErrTokenTooLong) {
		t.Errorf("expected ErrTokenTooLong, got %v", err)
	}
}

func TestHashTokenCostClamped(t *testing.T) {
	hash, err := HashTokenWithCost("token", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost failed: %v", err)
	}
	if cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}

func TestVerifyTokenErrors(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		hash    string
		wantErr error
	}{
		{"empty token", "", "$2a$04$abc", ErrEmptyToken},
		{"empty hash", "token", "", ErrInvalidHash},
		{"garbage hash", "token", "not-a-hash", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyToken(tt.token, tt.hash); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(16)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	b, _ := GenerateToken(16)
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if a == b {
		t.Error("tokens should differ")
	}
}
