package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an authenticated owner
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// UserPreferences 每个用户一行，记录当前调色板
type UserPreferences struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	CurrentPalette string    `json:"current_palette" db:"current_palette"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TokenClaims represents the JWT access token claims.
// The layout follows the hosted auth service: the owner id lives in "sub".
type TokenClaims struct {
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"` // "authenticated" for signed-in users
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// RoleAuthenticated is the role carried by signed-in user tokens
const RoleAuthenticated = "authenticated"

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
