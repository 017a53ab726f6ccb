package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/utils"
)

func TestAdminAuth(t *testing.T) {
	hash, err := utils.HashPassword("lottery-admin", 4)
	require.NoError(t, err)
	auth := NewAdminAuth(hash, "secret", 0)
	assert.Equal(t, 30*time.Minute, auth.TTL())

	_, err = auth.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	_, err = auth.Authenticate("")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	tok, err := auth.Authenticate("lottery-admin")
	require.NoError(t, err)
	claims, err := utils.ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)

	refreshed, err := auth.Refresh("")
	require.NoError(t, err)
	claims, err = utils.ParseAccessToken("secret", refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, adminSubject, claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = utils.ParseAccessToken("different", tok.Token)
	assert.Error(t, err)
}
