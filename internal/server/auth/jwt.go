// Package auth carries caller credentials: who is acting and with which
// scope. Credentials travel as HS256 JWTs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Scope distinguishes privileged callers from self-service users.
type Scope string

const (
	ScopeAdmin   Scope = "admin"
	ScopeCompany Scope = "company"
	ScopeTeam    Scope = "team"
	ScopeUser    Scope = "user"
)

// Credentials identify the caller of a grant.
type Credentials struct {
	UserID string
	Scope  Scope
}

// SelfService reports whether the caller may only grant to itself.
func (c Credentials) SelfService() bool {
	return c.Scope == ScopeUser
}

// Claims embeds the registered claims plus the caller's id and scope.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Scope  Scope  `json:"scope"`
}

// GenerateToken signs credentials valid for validityDuration.
func GenerateToken(c Credentials, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: c.UserID,
		Scope:  c.Scope,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseCredentials verifies tokenString and returns the credentials it
// carries. Every failure wraps common.ErrInvalidToken.
func ParseCredentials(tokenString string, secretKey []byte) (Credentials, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Credentials{}, fmt.Errorf("%w: token expired", common.ErrInvalidToken)
		}
		return Credentials{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID == "" {
		return Credentials{}, common.ErrInvalidToken
	}

	scope := claims.Scope
	if scope == "" {
		scope = ScopeUser
	}
	return Credentials{UserID: claims.UserID, Scope: scope}, nil
}
