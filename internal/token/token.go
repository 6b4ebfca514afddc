// Package token issues and verifies the two credential shapes used by the
// service: user session tokens for dashboard access and short-lived system
// tokens for server-to-server metrics sync. The two are deliberately distinct
// claim sets so a session token can never stand in for a system credential.
package token

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "proker-tracker"

// PurposeMetricsSync scopes a system token to the metrics sync endpoint.
const PurposeMetricsSync = "metrics_sync"

// ErrNotSystemToken indicates a token that parsed fine but does not assert
// the system identity, admin role, and purpose the caller required.
var ErrNotSystemToken = errors.New("token: not a valid system credential")

// UserClaims defines the session JWT payload.
type UserClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// SystemClaims defines the internal service-to-service JWT payload.
type SystemClaims struct {
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	jwtlib.RegisteredClaims
}

// GenerateUserToken issues a signed session JWT.
func GenerateUserToken(userID, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := UserClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseUserToken validates and extracts session claims from a token.
func ParseUserToken(token, secret string) (*UserClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &UserClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*UserClaims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GenerateSystemToken issues a short-lived credential asserting the system
// identity with admin scope and an explicit purpose claim.
func GenerateSystemToken(purpose, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SystemClaims{
		Role:    "admin",
		Purpose: purpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "system",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifySystemToken checks signature, system subject, admin role, and the
// purpose claim. A valid signature alone is not enough to accept the call.
func VerifySystemToken(token, purpose, secret string) (*SystemClaims, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &SystemClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*SystemClaims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if claims.Subject != "system" || claims.Role != "admin" || claims.Purpose != purpose {
		return nil, ErrNotSystemToken
	}
	return claims, nil
}
