package service

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/flixdeck/internal/repository"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	store, err := repository.NewFileStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return NewAuthService(repository.NewUserRepository(store))
}

func TestAuthLoginCreatesUnknownAccount(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	created, err := auth.Login(ctx, "dev@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "dev", created.Name)

	again, err := auth.Login(ctx, "dev@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = auth.Login(ctx, "dev@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthSignUp(t *testing.T) {
	auth := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.SignUp(ctx, "ann@example.com", "Ann", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)

	_, err = auth.SignUp(ctx, "ann@example.com", "", "secret123")
	assert.ErrorIs(t, err, repository.ErrUserExists)
}
