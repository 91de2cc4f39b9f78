package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	tok, err := GenerateJWT("user-1", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok, err := GenerateJWT("user-1", "secret", time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(tok, "other")
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	tok, err := GenerateJWT("user-1", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(tok, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseJWT_MissingSubject(t *testing.T) {
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(signed, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWT_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Minute).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseJWT(signed, "secret")
	assert.Error(t, err)
}
