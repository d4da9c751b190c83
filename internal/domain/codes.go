package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet is the URL-safe alphabet verification codes and opaque carrier
// tokens are drawn from. 64 symbols, so each character carries 6 bits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var alphabetLen = big.NewInt(int64(len(codeAlphabet)))

// GenerateCode generates a cryptographically random string of length n drawn
// from the URL-safe alphabet. Uses crypto/rand with big.Int sampling to avoid
// modulo bias.
func GenerateCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive: %w", ErrInvalidInput)
	}
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// GenerateVerificationCode generates a 6-character code for email and
// password-reset challenges. The code is the only thing sent to the user.
func GenerateVerificationCode() (string, error) {
	return GenerateCode(VerificationCodeLength)
}

// GenerateOpaqueToken generates a 32-character opaque token used as the
// carrier for sso, 2FA login-session, and wallet-pass ephemeral records.
func GenerateOpaqueToken() (string, error) {
	return GenerateCode(OpaqueTokenLength)
}
