package crypto

import (
	"crypto/rand"
	"testing"
)

func TestVaultEncryptDecrypt_Roundtrip(t *testing.T) {
	key := make([]byte, 32)
	rand.Read(key)

	v, err := NewVault(key)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	original := "my-secret-password-12345"
	ciphertext, err := v.Encrypt(original)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if ciphertext == original {
		t.Fatal("ciphertext should differ from plaintext")
	}

	decrypted, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	if decrypted != original {
		t.Fatalf("decrypted %q != original %q", decrypted, original)
	}
}

func TestVaultEncryptDecrypt_NoopMode(t *testing.T) {
	v, err := NewVault(nil)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	text := "plaintext-secret"
	ct, err := v.Encrypt(text)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct != text {
		t.Fatalf("noop encrypt should return plaintext, got %q", ct)
	}

	pt, err := v.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != text {
		t.Fatalf("noop decrypt should return plaintext, got %q", pt)
	}
}

func TestNewVault_InvalidKeyLength(t *testing.T) {
	_, err := NewVault([]byte("too-short"))
	if err == nil {
		t.Fatal("expected error for invalid key length")
	}
}

func TestVaultEncryptDecrypt_WrongKeyFails(t *testing.T) {
	key1 := make([]byte, 32)
	rand.Read(key1)
	key2 := make([]byte, 32)
	rand.Read(key2)

	v1, _ := NewVault(key1)
	v2, _ := NewVault(key2)

	ct, err := v1.Encrypt("api-key-value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := v2.Decrypt(ct); err == nil {
		t.Fatal("expected decrypt with wrong key to fail")
	}
}
