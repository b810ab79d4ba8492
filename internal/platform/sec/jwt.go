// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (hashing, JWT signing, opaque
// token generation) from the domain logic. The auth core consumes it through
// small interfaces so tests can substitute cheaper implementations.
package sec

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/skpdportal/pkg/uuid"
)

// ErrInvalidToken is returned for any token that fails signature, audience or expiry checks.
var ErrInvalidToken = errors.New("sec: invalid token")

// AuthClaims represents the payload embedded inside a JWT access token.
//
// Roles and permissions are embedded so [middleware.Authenticate] and
// [middleware.RequirePermission] can authorize requests without a database
// round trip.
type AuthClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	Username    string   `json:"unm"`
	TenantID    *int64   `json:"tid"`
	Roles       []string `json:"rol"`
	Permissions []string `json:"prm"`
}

// UserID returns the numeric account id carried in the subject claim.
func (c *AuthClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sec: malformed subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// AccessTokenInput carries the identity to embed in a freshly signed token.
type AccessTokenInput struct {
	UserID      int64
	Username    string
	TenantID    *int64
	Roles       []string
	Permissions []string
}

// TokenService handles generation and verification of JWT tokens using HS256.
type TokenService struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// TokenOption customises a [TokenService].
type TokenOption func(*TokenService)

// WithClock sets the clock expiry and not-before checks are evaluated against.
// It must be the same clock the issuer stamps tokens with.
func WithClock(now func() time.Time) TokenOption {
	return func(service *TokenService) {
		if now != nil {
			service.now = now
		}
	}
}

// NewTokenService creates a new TokenService bound to a symmetric secret.
func NewTokenService(secret, issuer, audience string, options ...TokenOption) *TokenService {
	service := &TokenService{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	for _, apply := range options {
		apply(service)
	}
	return service
}

/*
GenerateAccessToken signs a new access token for the given identity.

Returns:
  - string: The compact JWT
  - time.Time: Its expiry instant
  - error: Signing failure
*/
func (service *TokenService) GenerateAccessToken(input AccessTokenInput, issuedAt time.Time, timeToLive time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(timeToLive)

	roles := input.Roles
	if roles == nil {
		roles = []string{}
	}
	permissions := input.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   strconv.FormatInt(input.UserID, 10),
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username:    input.Username,
		TenantID:    input.TenantID,
		Roles:       roles,
		Permissions: permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// VerifyToken checks the signature, issuer, audience and expiry of a JWT string.
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(service.now),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
