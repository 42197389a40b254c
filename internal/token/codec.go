// Package token signs and verifies the bearer tokens handed out after a
// successful two-factor redemption.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// ErrVerification wraps every reason a token fails to verify.
var ErrVerification = errors.New("token: verification failed")

const signingAlg = "HS256"

// Claims is the claim set carried by a bearer token. Role is the authorizing claim.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c Claims) UserID() string {
	return c.Subject
}

// Codec issues and verifies HS256 tokens with a process-wide secret. Tokens carry
// no expiry.
type Codec struct {
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewCodec builds a Codec. An empty secret is a configuration error.
func NewCodec(secret string) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: jwt secret must be provided", shared.ErrConfiguration)
	}
	return &Codec{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{signingAlg})),
		now:    time.Now,
	}, nil
}

// Issue signs the claim set. The role claim is mandatory.
func (c *Codec) Issue(claims Claims) (string, error) {
	if strings.TrimSpace(claims.Role) == "" {
		return "", errors.New("token: role claim required")
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(c.now())
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks structure, algorithm and signature, returning the claims.
func (c *Codec) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", ErrVerification)
	}
	var claims Claims
	parsed, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrVerification
	}
	if strings.TrimSpace(claims.Role) == "" {
		return Claims{}, fmt.Errorf("%w: role claim missing", ErrVerification)
	}
	return claims, nil
}
