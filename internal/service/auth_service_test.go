package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService("secret")
	claims := models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleHeadTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	parsed, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), claims))
	require.NoError(t, err)
	require.Equal(t, "user-1", parsed.UserID)
	require.Equal(t, models.RoleHeadTeacher, parsed.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService("secret")
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), models.JWTClaims{UserID: "u", RegisteredClaims: valid}),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte("secret"), models.JWTClaims{UserID: "u", RegisteredClaims: valid}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}),
		"no user": signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{RegisteredClaims: valid}),
		"garbage": "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			require.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
