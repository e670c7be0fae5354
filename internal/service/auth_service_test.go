package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

func testAuthService() *AuthService {
	return &AuthService{
		cfg: AuthConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := testAuthService()
	user := &models.User{ID: "u-1", Role: models.RoleCustomer}

	token, err := s.issueToken(user, tokenTypeAccess, time.Minute)
	require.NoError(t, err)

	claims, err := s.parseToken(token, tokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleCustomer, claims.Role)
}

func TestTokenTypeMismatch(t *testing.T) {
	s := testAuthService()
	user := &models.User{ID: "u-1", Role: models.RoleCustomer}

	refresh, err := s.issueToken(user, tokenTypeRefresh, time.Minute)
	require.NoError(t, err)

	_, err = s.parseToken(refresh, tokenTypeAccess)
	var perm *PermissionDeniedError
	assert.ErrorAs(t, err, &perm)
}

func TestExpiredToken(t *testing.T) {
	s := testAuthService()
	user := &models.User{ID: "u-1", Role: models.RoleCustomer}

	token, err := s.issueToken(user, tokenTypeAccess, -time.Minute)
	require.NoError(t, err)

	_, err = s.parseToken(token, tokenTypeAccess)
	assert.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	s := testAuthService()
	user := &models.User{ID: "u-1", Role: models.RoleAdmin}

	token, err := s.issueToken(user, tokenTypeAccess, time.Minute)
	require.NoError(t, err)

	other := testAuthService()
	other.cfg.JWTSecret = "different-secret"
	_, err = other.parseToken(token, tokenTypeAccess)
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	req := &RegisterRequest{Email: "not-an-email", Password: "short"}

	err := req.validate()
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "first_name")
	assert.Contains(t, verr.Fields, "last_name")
}
