// Package crypto provides encryption for project connection secrets.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when decryption fails due to corrupt ciphertext or the wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// ConnectionEncryptor encrypts serialized connection configurations with
// AES-256-GCM before they are written to the projects table. Authenticated
// encryption means a ciphertext produced under one key fails loudly under
// another instead of decrypting to garbage.
type ConnectionEncryptor struct {
	gcm cipher.AEAD
}

// NewConnectionEncryptor creates an encryptor from a key string. A base64
// string decoding to exactly 32 bytes is used as the key directly (generate
// with: openssl rand -base64 32); anything else is treated as a passphrase and
// hashed to 32 bytes with SHA-256.
func NewConnectionEncryptor(keyInput string) (*ConnectionEncryptor, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}

	var key []byte
	if decoded, err := base64.StdEncoding.DecodeString(keyInput); err == nil && len(decoded) == 32 {
		key = decoded
	} else {
		hash := sha256.Sum256([]byte(keyInput))
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &ConnectionEncryptor{gcm: gcm}, nil
}

// Encrypt encrypts plaintext and returns nonce || ciphertext || tag.
// Nil or empty plaintext is returned as nil (nothing to protect).
func (e *ConnectionEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts nonce || ciphertext || tag and returns the plaintext.
// Nil or empty input is returned as nil.
func (e *ConnectionEncryptor) Decrypt(encrypted []byte) ([]byte, error) {
	if len(encrypted) == 0 {
		return nil, nil
	}

	nonceSize := e.gcm.NonceSize()
	if len(encrypted) < nonceSize+e.gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}

	return plaintext, nil
}
