package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"contacts-api/internal/cache"
	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepo) Init(ctx context.Context) error { return nil }

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, repository.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return user.ID, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) SetConfirmed(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.Confirmed = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateAvatar(ctx context.Context, email, avatarURL string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.Avatar = avatarURL
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID int64
	tokens map[int64]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[int64]*domain.RefreshToken)}
}

func (r *fakeTokenRepo) Init(ctx context.Context) error { return nil }

func (r *fakeTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	token.ID = r.nextID
	cp := *token
	r.tokens[token.ID] = &cp
	return token.ID, nil
}

func (r *fakeTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) GetActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash && t.Active(now) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeTokenRepo) Revoke(ctx context.Context, id int64, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.RevokedAt != nil {
		return repository.ErrNotFound
	}
	at := revokedAt
	t.RevokedAt = &at
	return nil
}

type authFixture struct {
	svc    AuthService
	users  *fakeUserRepo
	tokens *fakeTokenRepo
	mr     *miniredis.Miniredis
	cache  *cache.Client
	now    time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	fx := &authFixture{
		users:  newFakeUserRepo(),
		tokens: newFakeTokenRepo(),
		mr:     mr,
		cache:  cache.NewClientFromRedis(rdb),
		now:    time.Now().UTC(),
	}
	fx.svc = NewAuthService(fx.users, fx.tokens, fx.cache, AuthConfig{
		JWTSecret:       []byte("test-secret"),
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		UserCacheTTL:    5 * time.Second,
		UsernameMinLen:  3,
		UsernameMaxLen:  30,
		PasswordMinLen:  8,
		PasswordMaxLen:  64,
		Now:             func() time.Time { return fx.now },
	}, logger)
	return fx
}

func (fx *authFixture) register(t *testing.T, username, email string) *domain.User {
	t.Helper()
	user, err := fx.svc.Register(context.Background(), username, email, "password123")
	require.NoError(t, err)
	return user
}

func (fx *authFixture) confirm(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, fx.users.SetConfirmed(context.Background(), email))
}

func TestRegister(t *testing.T) {
	fx := newAuthFixture(t)

	user, err := fx.svc.Register(context.Background(), "alice", "Alice@Example.com", "password123")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email, "email must be normalized to lower case")
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.False(t, user.Confirmed)
	assert.Contains(t, user.Avatar, "gravatar.com/avatar/")

	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestRegister_Validation(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"username too short", "ab", "a@example.com", "password123"},
		{"username too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "a@example.com", "password123"},
		{"password too short", "alice", "a@example.com", "short"},
		{"invalid email", "alice", "not-an-email", "password123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Register(ctx, tc.username, tc.email, tc.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")

	_, err := fx.svc.Register(ctx, "alice", "other@example.com", "password123")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = fx.svc.Register(ctx, "bob", "alice@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = fx.svc.Register(ctx, "bob", "ALICE@example.com", "password123")
	assert.ErrorIs(t, err, ErrEmailTaken, "email uniqueness is case insensitive")
}

func TestAuthenticate(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")

	_, err := fx.svc.Authenticate(ctx, "alice", "password123")
	assert.ErrorIs(t, err, ErrEmailNotConfirmed)

	fx.confirm(t, "alice@example.com")

	_, err = fx.svc.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = fx.svc.Authenticate(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown user and wrong password must be indistinguishable")

	user, err := fx.svc.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestGetCurrentUser(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")
	fx.confirm(t, "alice@example.com")

	token, err := fx.svc.CreateAccessToken("alice")
	require.NoError(t, err)

	user, err := fx.svc.GetCurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.Confirmed)
}

func TestGetCurrentUser_BadToken(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	_, err := fx.svc.GetCurrentUser(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService(fx.users, fx.tokens, fx.cache, AuthConfig{
		JWTSecret:      []byte("another-secret"),
		AccessTokenTTL: time.Hour,
	}, nil)
	forged, err := other.CreateAccessToken("alice")
	require.NoError(t, err)

	_, err = fx.svc.GetCurrentUser(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken, "token signed with a different secret must be rejected")
}

func TestGetCurrentUser_UnknownSubject(t *testing.T) {
	fx := newAuthFixture(t)

	token, err := fx.svc.CreateAccessToken("ghost")
	require.NoError(t, err)

	_, err = fx.svc.GetCurrentUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGetCurrentUser_SnapshotCache(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")
	fx.confirm(t, "alice@example.com")

	token, err := fx.svc.CreateAccessToken("alice")
	require.NoError(t, err)

	first, err := fx.svc.GetCurrentUser(ctx, token)
	require.NoError(t, err)

	// change the store behind the cache's back
	_, err = fx.users.UpdateAvatar(ctx, "alice@example.com", "https://cdn.example.com/new.png")
	require.NoError(t, err)

	cached, err := fx.svc.GetCurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, first.Avatar, cached.Avatar, "within the TTL the snapshot is served as-is")

	fx.mr.FastForward(6 * time.Second)

	fresh, err := fx.svc.GetCurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/new.png", fresh.Avatar)
}

func TestRevokeAccessToken(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")
	fx.confirm(t, "alice@example.com")

	token, err := fx.svc.CreateAccessToken("alice")
	require.NoError(t, err)

	_, err = fx.svc.GetCurrentUser(ctx, token)
	require.NoError(t, err)

	require.NoError(t, fx.svc.RevokeAccessToken(ctx, token))

	// signature and expiry are still valid, only the deny-list blocks it
	_, err = fx.svc.GetCurrentUser(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeAccessToken_Expired(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	issued := fx.now
	fx.now = issued.Add(-time.Hour)
	token, err := fx.svc.CreateAccessToken("alice")
	require.NoError(t, err)
	fx.now = issued

	require.NoError(t, fx.svc.RevokeAccessToken(ctx, token))
	assert.Empty(t, fx.mr.Keys(), "expired token needs no deny-list entry")
}

func TestRevokeAccessToken_Malformed(t *testing.T) {
	fx := newAuthFixture(t)

	err := fx.svc.RevokeAccessToken(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	user := fx.register(t, "alice", "alice@example.com")

	secret, err := fx.svc.CreateRefreshToken(ctx, user.ID, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)

	record, err := fx.tokens.GetByHash(ctx, hashToken(secret))
	require.NoError(t, err)
	assert.NotEqual(t, secret, record.TokenHash, "raw secret must never be persisted")
	assert.Equal(t, "127.0.0.1", record.IPAddress)
	assert.Equal(t, "test-agent", record.UserAgent)

	got, err := fx.svc.ValidateRefreshToken(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestValidateRefreshToken_Unknown(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.ValidateRefreshToken(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRefreshToken_Expired(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	user := fx.register(t, "alice", "alice@example.com")

	secret, err := fx.svc.CreateRefreshToken(ctx, user.ID, "", "")
	require.NoError(t, err)

	fx.now = fx.now.Add(8 * 24 * time.Hour)

	_, err = fx.svc.ValidateRefreshToken(ctx, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeRefreshToken(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	user := fx.register(t, "alice", "alice@example.com")

	secret, err := fx.svc.CreateRefreshToken(ctx, user.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, fx.svc.RevokeRefreshToken(ctx, secret))

	_, err = fx.svc.ValidateRefreshToken(ctx, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// idempotent on already revoked and on unknown secrets
	assert.NoError(t, fx.svc.RevokeRefreshToken(ctx, secret))
	assert.NoError(t, fx.svc.RevokeRefreshToken(ctx, "never-issued"))
}

func TestRefreshRotation(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()
	fx.register(t, "alice", "alice@example.com")
	fx.confirm(t, "alice@example.com")

	user, err := fx.svc.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)

	oldSecret, err := fx.svc.CreateRefreshToken(ctx, user.ID, "", "")
	require.NoError(t, err)

	// rotation: validate, issue the replacement, then revoke the old one
	got, err := fx.svc.ValidateRefreshToken(ctx, oldSecret)
	require.NoError(t, err)

	newSecret, err := fx.svc.CreateRefreshToken(ctx, got.ID, "", "")
	require.NoError(t, err)
	require.NotEqual(t, oldSecret, newSecret)

	require.NoError(t, fx.svc.RevokeRefreshToken(ctx, oldSecret))

	_, err = fx.svc.ValidateRefreshToken(ctx, oldSecret)
	assert.ErrorIs(t, err, ErrInvalidToken, "a rotated-out token must not be exchangeable again")

	_, err = fx.svc.ValidateRefreshToken(ctx, newSecret)
	assert.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	registered := fx.register(t, "alice", "alice@example.com")

	_, err := fx.svc.Authenticate(ctx, "alice", "password123")
	require.ErrorIs(t, err, ErrEmailNotConfirmed)

	fx.confirm(t, "alice@example.com")

	user, err := fx.svc.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)

	access, err := fx.svc.CreateAccessToken(user.Username)
	require.NoError(t, err)
	refresh, err := fx.svc.CreateRefreshToken(ctx, user.ID, "127.0.0.1", "test-agent")
	require.NoError(t, err)

	me, err := fx.svc.GetCurrentUser(ctx, access)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)

	// logout
	require.NoError(t, fx.svc.RevokeAccessToken(ctx, access))
	require.NoError(t, fx.svc.RevokeRefreshToken(ctx, refresh))

	_, err = fx.svc.GetCurrentUser(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = fx.svc.ValidateRefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
