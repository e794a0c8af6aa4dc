// Package crypto provides the symmetric-encryption primitive used to store
// upstream passwords and LLM API keys at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Vault provides AES-256-GCM encryption and decryption for secrets.
type Vault struct {
	gcm cipher.AEAD
}

// NewVault creates a Vault with the given 32-byte key. If the key is empty,
// a no-op vault is returned that stores values as plaintext — useful for
// local development without a configured YOURMOMENT_VAULT_KEY.
func NewVault(key []byte) (*Vault, error) {
	if len(key) == 0 {
		return &Vault{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Vault{gcm: gcm}, nil
}

// Encrypt encrypts plaintext and returns a base64-encoded ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v.gcm == nil {
		return plaintext, nil // no-op mode
	}
	nonce := make([]byte, v.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := v.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts a base64-encoded ciphertext produced by Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if v.gcm == nil {
		return ciphertext, nil // no-op mode
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	nonceSize := v.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
