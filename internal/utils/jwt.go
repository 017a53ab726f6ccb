package utils // package utils provides helper functions for token creation, hashing and identifiers

import (
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed admin session token along with its
// expiry.  The Token field contains the JWT string.  Exp stores the
// expiration timestamp as a time.Time.  Session tokens are short-lived and
// sent in the Authorization header when calling admin endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// SessionClaims is the subset of claims the storefront reads back from a
// session token.
type SessionClaims struct {
	Subject  string
	Role     string
	IssuedAt time.Time
	Exp      time.Time
}

// ErrInvalidToken is returned by ParseAccessToken for any token that is
// malformed, expired or signed with a different secret.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT.  It takes the signing
// secret, the subject, the role and a lifetime.  The JWT includes the
// standard claims subject (sub), expiration (exp) and issued at (iat) plus
// the custom role claim.
func NewAccessToken(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns its claims.  Only
// HMAC signing methods are accepted.
func ParseAccessToken(secret, raw string) (SessionClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, ErrInvalidToken
	}
	var out SessionClaims
	out.Subject, _ = claims.GetSubject()
	out.Role, _ = claims["role"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Exp = exp.Time.UTC()
	}
	return out, nil
}
