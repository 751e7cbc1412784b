package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"contacts-api/internal/cache"
	"contacts-api/internal/domain"
)

func newUserFixture(t *testing.T) (UserService, *fakeUserRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := newFakeUserRepo()
	svc := NewUserService(users, cache.NewClientFromRedis(rdb), UserConfig{
		JWTSecret:     []byte("test-secret"),
		EmailTokenTTL: time.Hour,
		PasswordMin:   8,
		PasswordMax:   64,
	}, nil)
	return svc, users, mr
}

func seedUser(t *testing.T, users *fakeUserRepo, confirmed bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := &domain.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Confirmed:    confirmed,
	}
	_, err = users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestConfirmEmail(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	ctx := context.Background()
	seedUser(t, users, false)

	token, err := CreateEmailToken([]byte("test-secret"), "alice@example.com", time.Hour)
	require.NoError(t, err)

	already, err := svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, already)

	user, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.Confirmed)

	already, err = svc.ConfirmEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, already, "second confirmation reports the account as already confirmed")
}

func TestConfirmEmail_BadToken(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.ConfirmEmail(ctx, "garbage")
	assert.ErrorIs(t, err, ErrMalformedToken)

	token, err := CreateEmailToken([]byte("test-secret"), "nobody@example.com", time.Hour)
	require.NoError(t, err)
	_, err = svc.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	svc, users, _ := newUserFixture(t)
	ctx := context.Background()
	seedUser(t, users, true)

	token, err := CreateEmailToken([]byte("test-secret"), "alice@example.com", time.Hour)
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, token, "short")
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, token, "new-password-456"))

	user, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new-password-456")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestUpdateAvatar_InvalidatesSnapshot(t *testing.T) {
	svc, users, mr := newUserFixture(t)
	ctx := context.Background()
	seedUser(t, users, true)

	require.NoError(t, mr.Set("user:alice", `{"username":"alice"}`))

	user, err := svc.UpdateAvatar(ctx, "alice@example.com", "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", user.Avatar)

	assert.False(t, mr.Exists("user:alice"), "avatar change must drop the cached snapshot")
}

func TestUpdateAvatar_UnknownUser(t *testing.T) {
	svc, _, _ := newUserFixture(t)

	_, err := svc.UpdateAvatar(context.Background(), "nobody@example.com", "x")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
