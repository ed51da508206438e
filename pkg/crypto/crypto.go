package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// ErrInvalidTokenLength is returned when a token of zero or negative size is requested.
var ErrInvalidTokenLength = errors.New("crypto: token length must be positive")

// GenerateHexToken returns length random bytes from crypto/rand rendered as lowercase hex,
// so the resulting string is twice as long as the byte count.
func GenerateHexToken(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidTokenLength
	}

	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}
