package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	signed := signToken(t, testSecret, &Claims{
		UserID: "u-1",
		Email:  "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	signed := signToken(t, "some-other-secret", &Claims{Email: "a@x.com"})

	_, err := v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	signed := signToken(t, testSecret, &Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "a@x.com"})

	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingEmail(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	signed := signToken(t, testSecret, &Claims{UserID: "u-1"})

	_, err := v.Verify(signed)
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewHMACVerifier(testSecret)

	_, err := v.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
