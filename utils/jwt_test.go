package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWTToken("secret", 4, 9, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWTToken("secret", token)
	require.NoError(t, err)
	assert.EqualValues(t, 4, claims.UserID)
	assert.EqualValues(t, 9, claims.CompanyID)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTRejects(t *testing.T) {
	_, err := GenerateJWTToken("", 1, 1, "", time.Hour)
	assert.Error(t, err)

	token, err := GenerateJWTToken("secret", 1, 1, "", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWTToken("other", token)
	assert.Error(t, err, "wrong secret")

	expired, err := GenerateJWTToken("secret", 1, 1, "", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWTToken("secret", expired)
	assert.Error(t, err, "expired")

	noCompany, err := GenerateJWTToken("secret", 1, 0, "", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWTToken("secret", noCompany)
	assert.Error(t, err)

	_, err = ParseJWTToken("secret", "not-a-token")
	assert.Error(t, err)
}

func TestGenerateRateLimitKey(t *testing.T) {
	assert.Equal(t, GenerateRateLimitKey(1, 2, "/a"), GenerateRateLimitKey(1, 2, "/a"))
	assert.NotEqual(t, GenerateRateLimitKey(1, 2, "/a"), GenerateRateLimitKey(1, 3, "/a"))
	assert.NotEqual(t, GenerateRateLimitKey(1, 2, "/a"), GenerateRateLimitKey(2, 2, "/a"))
}
