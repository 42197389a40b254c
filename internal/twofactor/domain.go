// Package twofactor runs the one-time-code handshake between the primary
// credential check and bearer token issuance.
package twofactor

import (
	"time"

	"github.com/odyssey-erp/gatekeeper/internal/users"
)

// LoginSession is one 2FA handshake. It is created unconsumed and mutated once,
// when its code is redeemed.
type LoginSession struct {
	ID            string
	UserID        string
	Code          string
	CodeConsumed  bool
	IssuedToken   string
	TokenConsumed bool
	CreatedAt     time.Time
}

// Redemption is the result of a successful code redemption.
type Redemption struct {
	Session LoginSession
	User    users.User
	Token   string
}
