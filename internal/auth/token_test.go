package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc, err := NewTokenService("s3cret")
	require.NoError(t, err)

	token, err := svc.Issue("frontend", time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "frontend", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestTokenService_Rejects(t *testing.T) {
	svc, err := NewTokenService("s3cret")
	require.NoError(t, err)

	t.Run("Expired", func(t *testing.T) {
		token, err := svc.Issue("frontend", -time.Minute)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, _ := NewTokenService("other")
		token, err := other.Issue("frontend", time.Hour)
		require.NoError(t, err)
		_, err = svc.Validate(token)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(signed)
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})
}

func TestNewTokenService_MissingSecret(t *testing.T) {
	_, err := NewTokenService("")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
