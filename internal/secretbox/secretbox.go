// Package secretbox encrypts small secrets for storage at rest. Each value is
// sealed with AES-256-GCM under a key derived from the service passphrase via
// PBKDF2, using a fresh per-record salt and nonce. The sealed form is a single
// base64 string: salt || nonce || ciphertext.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/decode-platform/auth-service/internal/domain"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

// Box seals and opens secrets under one passphrase and one associated-data
// label. The label is bound into every seal; opening with a different label
// fails.
type Box struct {
	passphrase domain.SecretBytes
	label      []byte
}

// New creates a Box. The passphrase must be non-empty.
func New(passphrase domain.SecretBytes, label string) (*Box, error) {
	if len(passphrase.Expose()) == 0 {
		return nil, fmt.Errorf("secretbox passphrase: %w", domain.ErrConfigRequired)
	}
	return &Box{passphrase: passphrase, label: []byte(label)}, nil
}

// Seal encrypts plaintext and returns the base64 sealed form.
func (b *Box) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, b.label)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a sealed value. Tampered or foreign values are reported as
// domain.ErrUnauthorized without detail.
func (b *Box) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", domain.ErrUnauthorized)
	}
	if len(raw) < saltSize {
		return nil, fmt.Errorf("open sealed value: %w", domain.ErrUnauthorized)
	}

	salt, rest := raw[:saltSize], raw[saltSize:]
	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("open sealed value: %w", domain.ErrUnauthorized)
	}

	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, b.label)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", domain.ErrUnauthorized)
	}
	return plaintext, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.passphrase.Expose(), salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}
