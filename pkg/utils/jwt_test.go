package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := NewJWTService("test-secret")

	access, refresh, expiresIn, err := svc.GenerateTokenPair("user-1", "u@example.com", "student")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.Greater(t, expiresIn, int64(0))

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "u@example.com", claims.Email)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, "access", claims.Type)
}

func TestValidateRefreshTokenRejectsAccess(t *testing.T) {
	svc := NewJWTService("test-secret")

	access, refresh, _, err := svc.GenerateTokenPair("user-1", "u@example.com", "admin")
	require.NoError(t, err)

	_, err = svc.ValidateRefreshToken(access)
	assert.Error(t, err)

	claims, err := svc.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Type)
}

func TestRefreshAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	_, refresh, _, err := svc.GenerateTokenPair("user-1", "u@example.com", "admin")
	require.NoError(t, err)

	access, _, err := svc.RefreshAccessToken(refresh)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	access, _, _, err := svc.GenerateTokenPair("user-1", "u@example.com", "student")
	require.NoError(t, err)

	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}
