// Package auth authenticates callers of the branding API. Tokens are HS256
// JWTs in the shape Supabase issues (role in "role" or "app_metadata.role");
// automation can use a static API key stored as a bcrypt hash.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the application role carried in a token.
type Role string

// RoleAdmin may change branding. Any other role is read-only.
const RoleAdmin Role = "admin"

// AppMetadata is the server-controlled part of a Supabase JWT.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims holds the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

// EffectiveRole prefers app_metadata.role, which users cannot edit, over
// the top-level role claim (Supabase sets that to "authenticated").
func (c *Claims) EffectiveRole() Role {
	if c.AppMetadata.Role != "" {
		return Role(c.AppMetadata.Role)
	}
	return Role(c.Role)
}

// IsAdmin reports whether the caller may change branding.
func (c *Claims) IsAdmin() bool {
	return c.EffectiveRole() == RoleAdmin
}

// TokenService signs and validates access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService. An empty issuer disables the
// issuer check on validation.
func NewTokenService(secret []byte, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue signs a token for subject with role stored in app_metadata. A ttl
// of 0 uses the service default.
func (s *TokenService) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("token secret not configured")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.issuer,
		},
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: string(role)},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("token secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
