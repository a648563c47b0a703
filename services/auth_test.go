package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-order/utils"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	auth := NewAuthenticator(f.pool, tokens)
	ctx := context.Background()

	token, err := auth.Login(ctx, "admin", "1234")
	require.NoError(t, err)

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = auth.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, "ghost", "1234")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)
}
