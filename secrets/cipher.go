package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"mandanten-backend/apperrors"
)

// Cipher encrypts and decrypts tenant credentials at rest with AES-256-GCM.
// The key is loaded once at process start; it is never derived per call.
// Ciphertext is base64 so it can live in plain text columns.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Two calls with the
// same plaintext yield different ciphertexts; callers must not assume
// ciphertext equality implies plaintext equality.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens base64 ciphertext. Tampered data or data sealed under a
// different key fails with a decryption error; it never returns corrupted
// plaintext.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindDecryption, "ciphertext is not valid base64", err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", apperrors.E(apperrors.KindDecryption, "ciphertext too short")
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindDecryption, "ciphertext failed authentication", err)
	}
	return string(plaintext), nil
}
