package credential

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}

	if !VerifyPassword("correct-horse-battery-staple", hash) {
		t.Error("VerifyPassword() = false for correct password, want true")
	}

	if VerifyPassword("wrong-password", hash) {
		t.Error("VerifyPassword() = true for wrong password, want false")
	}
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	h1, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	h2, err := HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}

	if h1 == h2 {
		t.Error("HashPassword() produced identical output for two calls, salts should differ")
	}

	if !VerifyPassword("same-password", h1) || !VerifyPassword("same-password", h2) {
		t.Error("both hashes should verify against the same password")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	if VerifyPassword("anything", "not-a-valid-hash") {
		t.Error("VerifyPassword() = true for malformed hash, want false")
	}
}
