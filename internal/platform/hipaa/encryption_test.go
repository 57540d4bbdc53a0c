package hipaa

import (
	"crypto/rand"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewPHIEncryptor(t *testing.T) {
	if _, err := NewPHIEncryptor(generateTestKey(t)); err != nil {
		t.Fatalf("unexpected error for 32-byte key: %v", err)
	}
	for _, n := range []int{0, 16, 64} {
		if _, err := NewPHIEncryptor(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	enc, err := NewPHIEncryptor(generateTestKey(t))
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	cases := []string{
		"jane.doe@example.com",
		"(555) 010-2233",
		"1200 Harbor Blvd, Apt 4",
		"MEM-00012345",
		"",
	}

	for _, plaintext := range cases {
		t.Run(plaintext, func(t *testing.T) {
			sealed, err := enc.Encrypt(plaintext)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}
			if !IsSealed(sealed) {
				t.Fatalf("expected sealed prefix, got %q", sealed)
			}
			if plaintext != "" && strings.Contains(sealed, plaintext) {
				t.Fatal("ciphertext should not contain plaintext")
			}

			opened, err := enc.Decrypt(sealed)
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}
			if opened != plaintext {
				t.Errorf("round trip mismatch: got %q, want %q", opened, plaintext)
			}
		})
	}
}

func TestEncrypt_NonceIsRandom(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("expected different ciphertexts for the same plaintext")
	}
}

func TestDecrypt_Plaintext(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	got, err := enc.Decrypt("written before encryption")
	if err != nil || got != "written before encryption" {
		t.Errorf("expected plaintext pass-through, got %q, %v", got, err)
	}
}

func TestDecrypt_Failures(t *testing.T) {
	enc, _ := NewPHIEncryptor(generateTestKey(t))
	other, _ := NewPHIEncryptor(generateTestKey(t))
	sealed, _ := other.Encrypt("secret")

	for name, in := range map[string]string{
		"bad base64": sealedPrefix + "!!!",
		"too short":  sealedPrefix + "AAAA",
		"wrong key":  sealed,
	} {
		if _, err := enc.Decrypt(in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
