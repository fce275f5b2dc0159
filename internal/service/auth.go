// Package service provides the business logic layer (use cases): the
// billing webhook processor, earnings summaries, data export and caller
// authentication.
package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims of a Supabase-issued access token that the API
// reads. The application role lives in app_metadata, with user_metadata as a
// fallback for accounts created before roles were server-assigned.
type JWTClaims struct {
	AppMetadata  roleMetadata `json:"app_metadata"`
	UserMetadata roleMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

type roleMetadata struct {
	Role domain.Role `json:"role,omitempty"`
}

// TokenVerifier validates HS256 access tokens signed with the project's
// JWT secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier. An empty secret rejects every token.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses tokenString and returns the caller it identifies.
func (v *TokenVerifier) Verify(tokenString string) (*domain.Caller, error) {
	if len(v.secret) == 0 {
		return nil, &domain.ErrConfiguration{Setting: "SUPABASE_JWT_SECRET"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	role := claims.AppMetadata.Role
	if role == "" {
		role = claims.UserMetadata.Role
	}
	if role == "" {
		role = domain.RoleParent
	}
	if role != domain.RoleParent && role != domain.RoleStudent {
		return nil, &domain.ErrUnauthorized{Message: fmt.Sprintf("unknown role %q", role)}
	}

	return &domain.Caller{UserID: claims.Subject, Role: role}, nil
}

// Issue signs an access token for userID. Used by local tooling and tests;
// production tokens come from Supabase Auth.
func (v *TokenVerifier) Issue(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		AppMetadata: roleMetadata{Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "family-rewards-bfa",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
