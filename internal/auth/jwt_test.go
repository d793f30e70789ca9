package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/kiraleos/chatterd/internal/config"
)

func TestMain(m *testing.M) {
	config.AppConfig.JWTSecret = "test-secret"
	m.Run()
}

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT("user-123", "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, "a@x.com", claims.Identity)
}

func TestValidateJWTTampered(t *testing.T) {
	token, err := GenerateJWT("user-123", "a@x.com")
	require.NoError(t, err)

	_, err = ValidateJWT(token + "x")
	require.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Identity: "a@x.com",
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(config.AppConfig.JWTSecret))
	require.NoError(t, err)

	_, err = ValidateJWT(expired)
	require.Error(t, err)
}

func TestValidateJWTWrongSigningMethod(t *testing.T) {
	// alg=none style tokens must be rejected by the method check.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-123"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(unsigned)
	require.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("pw123")
	require.NoError(t, err)
	require.NotEqual(t, "pw123", hash)

	require.True(t, CheckPasswordHash("pw123", hash))
	require.False(t, CheckPasswordHash("wrong", hash))
}
