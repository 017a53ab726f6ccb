package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lottery-storefront/internal/model"
)

func TestNewReferenceID_format(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		ref, err := NewReferenceID()
		require.NoError(t, err)
		assert.True(t, model.ValidReference(ref), ref)
		seen[ref] = struct{}{}
	}
	// 36^9 possibilities; 200 draws colliding would point at a broken source.
	assert.Len(t, seen, 200)
}

func TestAccessToken_roundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", "admin", "ADMIN", 30*time.Minute)
	require.NoError(t, err)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.WithinDuration(t, tok.Exp, claims.Exp, time.Second)
}

func TestParseAccessToken_rejects(t *testing.T) {
	tok, err := NewAccessToken("secret", "admin", "ADMIN", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("secret", "admin", "ADMIN", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAccessToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword_hashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
	assert.False(t, VerifyPassword(hash, ""))
	assert.True(t, IsPasswordHash(hash))
	assert.False(t, IsPasswordHash("hunter2"))

	_, err = HashPassword("", 4)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}
