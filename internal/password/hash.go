package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/decode-platform/auth-service/internal/domain"
)

const (
	minLength = domain.MinPasswordLength
	minScore  = domain.PasswordScoreRequired
)

// Hash derives a bcrypt hash of the plaintext at the service's fixed cost.
func Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), domain.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare checks a plaintext candidate against a stored hash. A mismatch is
// reported as domain.ErrInvalidCredentials without detail.
func Compare(hashed, plaintext string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)); err != nil {
		return fmt.Errorf("compare password: %w", domain.ErrInvalidCredentials)
	}
	return nil
}
