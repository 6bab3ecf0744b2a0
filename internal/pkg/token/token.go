package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const alphanum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewInviteToken generates the random token embedded in invite accept/decline
// links: 16 random bytes, hex-encoded. Collisions are negligible at this size.
func NewInviteToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewOTP generates a uniformly random fixed-width numeric code of n digits,
// zero-padded ("000000" is a valid 6-digit code).
func NewOTP(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// NewOneTimePassword generates a random alphanumeric password of n characters,
// assigned once to a newly approved admin and shown a single time.
func NewOneTimePassword(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphanum))))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = alphanum[idx.Int64()]
	}
	return string(b), nil
}
