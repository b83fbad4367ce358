// Package auth provides session tokens and the middleware that enforces them.
//
// Sessions are stateless JWTs (HS256) stored in an HttpOnly cookie. The
// token carries the user ID in the standard "sub" claim plus a custom
// "roles" claim, so role gates don't need a DB lookup per request. The
// signature makes both tamper-proof.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "mychat"

// Session lifetimes. A plain login lasts a working day; "remember me"
// stretches it to 30 days, matching the persistent-cookie behaviour users
// expect from the checkbox.
const (
	SessionDuration  = 12 * time.Hour
	RememberDuration = 30 * 24 * time.Hour
)

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used to sign and verify; the same secret must serve both.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production,
// e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds the registered claims and adds the role set.
type claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given user and roles.
func (s *TokenService) Generate(userID string, roles []string, lifetime time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token string and returns the principal it
// encodes.
//
// The algorithm is pinned to HS256 (jwt.WithValidMethods) so a token signed
// with "none" or an asymmetric key is rejected outright, and the issuer is
// pinned so tokens minted by another app with a shared secret don't pass.
func (s *TokenService) Validate(tokenStr string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &Principal{UserID: c.Subject, Roles: c.Roles}, nil
}
