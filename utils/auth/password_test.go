package auth

import (
	"errors"
	"testing"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("expected matching password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPasswordRejectsShortInput(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestIsPasswordValid(t *testing.T) {
	if IsPasswordValid("seven77") {
		t.Error("7-character password should be invalid")
	}
	if !IsPasswordValid("eight888") {
		t.Error("8-character password should be valid")
	}
}
