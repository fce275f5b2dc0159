package service_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := service.NewTokenVerifier("secret")

	token, err := v.Issue("user-1", domain.RoleStudent, time.Hour)
	require.NoError(t, err)

	caller, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.UserID)
	assert.Equal(t, domain.RoleStudent, caller.Role)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := service.NewTokenVerifier("secret")

	expired, err := v.Issue("user-1", domain.RoleParent, -time.Minute)
	require.NoError(t, err)
	other, err := service.NewTokenVerifier("other").Issue("user-1", domain.RoleParent, time.Hour)
	require.NoError(t, err)
	badRole, err := v.Issue("user-1", domain.Role("admin"), time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{"expired": expired, "wrong secret": other, "garbage": "not-a-jwt", "role": badRole} {
		_, err := v.Verify(tok)
		var unauthorized *domain.ErrUnauthorized
		assert.ErrorAs(t, err, &unauthorized, name)
	}
}

func TestTokenVerifier_UserMetadataRoleAndDefault(t *testing.T) {
	secret := []byte("secret")
	v := service.NewTokenVerifier("secret")

	withUserMeta := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           "stu-9",
		"exp":           time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]any{"role": "student"},
	})
	s, err := withUserMeta.SignedString(secret)
	require.NoError(t, err)
	caller, err := v.Verify(s)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, caller.Role)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "parent-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err = noRole.SignedString(secret)
	require.NoError(t, err)
	caller, err = v.Verify(s)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleParent, caller.Role)
}

func TestTokenVerifier_MissingSecret(t *testing.T) {
	_, err := service.NewTokenVerifier("").Verify("anything")
	var cfg *domain.ErrConfiguration
	assert.ErrorAs(t, err, &cfg)
}
