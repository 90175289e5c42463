package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilespace-backend/pkg/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret")
	token, exp, err := svc.GenerateAccessToken("user-1", "a@b.c", time.Minute)
	require.NoError(t, err)
	assert.Greater(t, exp, time.Now().Unix())

	user, err := svc.ExtractUserFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "a@b.c", user.Email)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTService("one").GenerateAccessToken("user-1", "", 0)
	require.NoError(t, err)

	_, err = NewJWTService("two").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsExpired(t *testing.T) {
	claims := &models.TokenClaims{UserID: "u", Role: models.RoleAuthenticated, Exp: time.Now().Add(-time.Minute).Unix(), Iat: time.Now().Add(-time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret").ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTRejectsServiceRole(t *testing.T) {
	claims := &models.TokenClaims{UserID: "u", Role: "service_role", Exp: time.Now().Add(time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTService("secret").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
