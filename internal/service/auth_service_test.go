package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.Auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "Ada@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.Equal(t, domain.RoleCustomer, result.User.Role)
	assert.NotEqual(t, "secret123", result.User.PasswordHash)
	assert.NotEmpty(t, result.Token)

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ada@example.com", sent[0].To)

	_, err = env.svc.Auth.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "other123"})
	var conflict *errors.ErrConflict
	require.True(t, stderrors.As(err, &conflict))

	login, err := env.svc.Auth.Login(ctx, LoginRequest{Email: "ADA@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotNil(t, login.User.LastLogin)

	user, err := env.svc.Auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	_, err = env.svc.Auth.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong"})
	var unauthorized *errors.ErrUnauthorized
	require.True(t, stderrors.As(err, &unauthorized))

	_, err = env.svc.Auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.True(t, stderrors.As(err, &unauthorized))
}

func TestDeactivatedAccountIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, domain.RoleAdmin)

	result, err := env.svc.Auth.Register(ctx, RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "secret123"})
	require.NoError(t, err)

	inactive := false
	_, err = env.svc.Auth.UpdateUser(ctx, admin.ID, result.User.ID, AdminUpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)

	var forbidden *errors.ErrForbidden
	_, err = env.svc.Auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "secret123"})
	require.True(t, stderrors.As(err, &forbidden))
	_, err = env.svc.Auth.Authenticate(ctx, result.Token)
	require.True(t, stderrors.As(err, &forbidden))
}

func TestAdminCannotDemoteSelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, domain.RoleAdmin)
	customer := env.user(t, domain.RoleCustomer)

	role := domain.RoleCustomer
	_, err := env.svc.Auth.UpdateUser(ctx, admin.ID, admin.ID, AdminUpdateUserRequest{Role: &role})
	var forbidden *errors.ErrForbidden
	require.True(t, stderrors.As(err, &forbidden))

	inactive := false
	_, err = env.svc.Auth.UpdateUser(ctx, admin.ID, admin.ID, AdminUpdateUserRequest{IsActive: &inactive})
	require.True(t, stderrors.As(err, &forbidden))

	promote := domain.RoleAdmin
	updated, err := env.svc.Auth.UpdateUser(ctx, admin.ID, customer.ID, AdminUpdateUserRequest{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result, err := env.svc.Auth.Register(ctx, RegisterRequest{Name: "Cy", Email: "cy@example.com", Password: "secret123"})
	require.NoError(t, err)

	err = env.svc.Auth.ChangePassword(ctx, result.User.ID, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newsecret"})
	var validation *errors.ErrValidation
	require.True(t, stderrors.As(err, &validation))

	require.NoError(t, env.svc.Auth.ChangePassword(ctx, result.User.ID, ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"}))
	_, err = env.svc.Auth.Login(ctx, LoginRequest{Email: "cy@example.com", Password: "newsecret"})
	require.NoError(t, err)
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	user := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = NewTokenIssuer("other", time.Minute).Parse(token)
	var unauthorized *errors.ErrUnauthorized
	require.True(t, stderrors.As(err, &unauthorized))

	expired := NewTokenIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	require.True(t, stderrors.As(err, &unauthorized))
}
