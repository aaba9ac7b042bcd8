package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatssi/server/internal/config"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT(1755000000000001)
	require.NoError(t, err)

	userID, err := ValidateJWT(token)
	require.NoError(t, err)
	require.Equal(t, int64(1755000000000001), userID)
}

func TestValidateJWTRejectsBadToken(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	_, err := ValidateJWT("not-a-token")
	require.Error(t, err)
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := GenerateJWT(7)
	require.NoError(t, err)

	config.AppConfig.JWTSecret = "other-secret"
	_, err = ValidateJWT(token)
	require.Error(t, err)
}
