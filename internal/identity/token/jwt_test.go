package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findmyid/pkg/domain"
	dErrors "findmyid/pkg/domain-errors"
)

var tokenService = NewService("test-signing-key", "findmyid-test", time.Hour)
var userID = domain.NewUserID()

func Test_GenerateAccessToken(t *testing.T) {
	token, err := tokenService.GenerateAccessToken(userID, domain.RolePublicAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokenService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, string(domain.RolePublicAdmin), claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := tokenService.ValidateToken("invalid-token-string")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	expired := NewService("test-signing-key", "findmyid-test", -time.Hour)
	token, err := expired.GenerateAccessToken(userID, domain.RoleCitizen)
	require.NoError(t, err)

	_, err = tokenService.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	require.Contains(t, err.Error(), "expired")
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewService("other-signing-key", "findmyid-test", time.Hour)
	token, err := other.GenerateAccessToken(userID, domain.RoleCitizen)
	require.NoError(t, err)

	_, err = tokenService.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_MiddlewareAdapter(t *testing.T) {
	adapter := NewMiddlewareAdapter(tokenService)
	token, err := tokenService.GenerateAccessToken(userID, domain.RolePlatformAdmin)
	require.NoError(t, err)

	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, string(domain.RolePlatformAdmin), claims.Role)
}
