package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, returned base64url-encoded without padding.
// TokenSize256 is the recommended size for session tokens.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// Session tokens are stored as fingerprints so a database leak does not
// yield usable cookies.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewAPIKey generates a fresh API key: the hex SHA-256 digest of 64 random
// bytes. 64 hex characters, safe for HTTP headers.
func NewAPIKey() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	sum := sha256.Sum256([]byte(hex.EncodeToString(buf)))
	return hex.EncodeToString(sum[:]), nil
}

// NewOTPSecret generates a TOTP shared secret: 10 random bytes, base32
// encoded (16 characters, no padding needed at this length).
func NewOTPSecret() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate otp secret: %w", err)
	}
	return base32.StdEncoding.EncodeToString(buf), nil
}

// RandomHex returns the hex encoding of between minBytes and maxBytes random
// bytes. Used for throwaway initial passwords on registered accounts.
func RandomHex(minBytes, maxBytes int) (string, error) {
	if minBytes <= 0 || maxBytes < minBytes {
		return "", fmt.Errorf("invalid byte range [%d, %d]", minBytes, maxBytes)
	}
	size := minBytes
	if maxBytes > minBytes {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(maxBytes-minBytes+1)))
		if err != nil {
			return "", fmt.Errorf("failed to pick random length: %w", err)
		}
		size = minBytes + int(n.Int64())
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
