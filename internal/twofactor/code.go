package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultCodeLength is the number of digits in a one-time code.
	DefaultCodeLength = 5
	MinCodeLength     = 4
	MaxCodeLength     = 10
)

var ten = big.NewInt(10)

// GenerateCode returns a numeric code of the given length drawn from crypto/rand.
// Leading zeros are kept.
func GenerateCode(length int) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", fmt.Errorf("twofactor: code length %d outside [%d, %d]", length, MinCodeLength, MaxCodeLength)
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("twofactor: random digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
