package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	a, err := New("secret", time.Hour)
	require.NoError(t, err)

	token, err := a.GenerateToken(7, RoleDashboard)
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserId)
	assert.Equal(t, RoleDashboard, claims.Role)
	assert.True(t, claims.Authorized(RoleAdmin, RoleDashboard))
	assert.False(t, claims.Authorized(RoleAdmin))
	assert.True(t, claims.Authorized())
}

func TestTokenRejected(t *testing.T) {
	a, err := New("secret", time.Hour)
	require.NoError(t, err)
	other, err := New("other", time.Hour)
	require.NoError(t, err)

	token, err := other.GenerateToken(1, RoleAdmin)
	require.NoError(t, err)

	_, err = a.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := a.GenerateToken(1, RoleAdmin)
	require.NoError(t, err)
	_, err = a.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("", time.Hour)
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), Key, Claims{UserId: 3, Role: RoleAdmin})
	claims, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), claims.UserId)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("p@ss")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "p@ss"))
	assert.False(t, ComparePassword(hash, "nope"))
	assert.False(t, ComparePassword("not-a-hash", "p@ss"))
}
