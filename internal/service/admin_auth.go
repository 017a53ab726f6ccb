package service

import (
	"time"

	"github.com/iliyamo/lottery-storefront/internal/utils"
)

// RoleAdmin is the role claim carried by admin session tokens.
const RoleAdmin = "ADMIN"

// adminSubject is the subject of every admin session.  There is a single
// shared passphrase, not individual accounts.
const adminSubject = "admin"

// AdminAuth verifies the shared admin passphrase and issues short-lived
// session tokens.  A session lasts ttl from its last refresh.
type AdminAuth struct {
	passwordHash string
	secret       string
	ttl          time.Duration
}

// NewAdminAuth returns an AdminAuth checking passwords against the bcrypt
// passwordHash and signing tokens with secret.
func NewAdminAuth(passwordHash, secret string, ttl time.Duration) *AdminAuth {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AdminAuth{passwordHash: passwordHash, secret: secret, ttl: ttl}
}

// Authenticate returns a session token when password matches.
func (a *AdminAuth) Authenticate(password string) (utils.AccessToken, error) {
	if password == "" || !utils.VerifyPassword(a.passwordHash, password) {
		return utils.AccessToken{}, ErrInvalidPassword
	}
	return utils.NewAccessToken(a.secret, adminSubject, RoleAdmin, a.ttl)
}

// Refresh issues a new token for an already authenticated session,
// extending it by another ttl.
func (a *AdminAuth) Refresh(subject string) (utils.AccessToken, error) {
	if subject == "" {
		subject = adminSubject
	}
	return utils.NewAccessToken(a.secret, subject, RoleAdmin, a.ttl)
}

// TTL returns the session lifetime.
func (a *AdminAuth) TTL() time.Duration { return a.ttl }
