package service

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"contacts-api/internal/cache"
	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

var (
	// ErrInvalidCredentials covers both "unknown user" and "wrong password".
	// The two cases are intentionally indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrEmailNotConfirmed is returned when credentials are correct but the
	// email has not been verified.
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("user with this username already exists")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidToken covers invalid, expired and unmatchable tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTokenRevoked is returned for access tokens on the deny-list.
	ErrTokenRevoked = errors.New("token has been revoked")
	// ErrValidation wraps registration input validation failures.
	ErrValidation = errors.New("validation failed")
)

const refreshSecretBytes = 32 // 256 bits of entropy

// AuthConfig carries the tunables of the auth engine.
type AuthConfig struct {
	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	UserCacheTTL    time.Duration
	UsernameMinLen  int
	UsernameMaxLen  int
	PasswordMinLen  int
	PasswordMaxLen  int
	Now             func() time.Time
}

// AuthService orchestrates registration, authentication and the token
// lifecycle across the credential store, the token ledger and the
// revocation cache. It holds no mutable state of its own.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	CreateAccessToken(username string) (string, error)
	CreateRefreshToken(ctx context.Context, userID int64, ipAddress, userAgent string) (string, error)
	ValidateRefreshToken(ctx context.Context, secret string) (*domain.User, error)
	RevokeRefreshToken(ctx context.Context, secret string) error
	RevokeAccessToken(ctx context.Context, rawToken string) error
	GetCurrentUser(ctx context.Context, rawToken string) (*domain.PublicUser, error)
}

type authService struct {
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	cache  *cache.Client
	cfg    AuthConfig
	logger *logrus.Logger
}

func NewAuthService(users repository.UserRepository, tokens repository.RefreshTokenRepository, cacheClient *cache.Client, cfg AuthConfig, logger *logrus.Logger) AuthService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &authService{
		users:  users,
		tokens: tokens,
		cache:  cacheClient,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if len(username) < s.cfg.UsernameMinLen || len(username) > s.cfg.UsernameMaxLen {
		return nil, fmt.Errorf("%w: username must be between %d and %d characters",
			ErrValidation, s.cfg.UsernameMinLen, s.cfg.UsernameMaxLen)
	}
	if len(password) < s.cfg.PasswordMinLen || len(password) > s.cfg.PasswordMaxLen {
		return nil, fmt.Errorf("%w: password must be between %d and %d characters",
			ErrValidation, s.cfg.PasswordMinLen, s.cfg.PasswordMaxLen)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	// username first, then email; two independent lookups
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	avatar, err := gravatarURL(email)
	if err != nil {
		// best effort: registration proceeds without an avatar
		s.logger.Warnf("derive avatar for %s: %v", username, err)
		avatar = ""
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		Confirmed:    false,
		Avatar:       avatar,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	return user, nil
}

func (s *authService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *authService) CreateAccessToken(username string) (string, error) {
	now := s.cfg.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.JWTSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

func (s *authService) CreateRefreshToken(ctx context.Context, userID int64, ipAddress, userAgent string) (string, error) {
	secret, err := generateRefreshSecret()
	if err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}

	now := s.cfg.Now()
	record := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(secret),
		CreatedAt: now,
		ExpiredAt: now.Add(s.cfg.RefreshTokenTTL),
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if _, err := s.tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("save refresh token: %w", err)
	}

	// the only moment the raw secret exists outside the client
	return secret, nil
}

func (s *authService) ValidateRefreshToken(ctx context.Context, secret string) (*domain.User, error) {
	record, err := s.tokens.GetActiveByHash(ctx, hashToken(secret), s.cfg.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// RevokeRefreshToken is an idempotent no-op on unknown or already revoked
// tokens, so logout can always call it defensively.
func (s *authService) RevokeRefreshToken(ctx context.Context, secret string) error {
	record, err := s.tokens.GetByHash(ctx, hashToken(secret))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if record.RevokedAt != nil {
		return nil
	}

	if err := s.tokens.Revoke(ctx, record.ID, s.cfg.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// revoked concurrently, same outcome
			return nil
		}
		return err
	}
	return nil
}

func (s *authService) RevokeAccessToken(ctx context.Context, rawToken string) error {
	claims, err := s.decodeAccessToken(rawToken, true)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return nil
	}

	remaining := claims.ExpiresAt.Time.Sub(s.cfg.Now())
	if remaining <= 0 {
		// expired tokens cannot be used, nothing to block
		return nil
	}
	return s.cache.BlacklistToken(ctx, rawToken, remaining)
}

func (s *authService) GetCurrentUser(ctx context.Context, rawToken string) (*domain.PublicUser, error) {
	// the deny-list check must come before everything else so a revoked
	// token can never be served from the snapshot cache
	blacklisted, err := s.cache.IsBlacklisted(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, ErrTokenRevoked
	}

	claims, err := s.decodeAccessToken(rawToken, false)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	snapshot, err := s.cache.GetUserSnapshot(ctx, claims.Subject)
	if err != nil {
		s.logger.Warnf("user snapshot read: %v", err)
	}
	if snapshot != nil {
		return snapshot, nil
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	public := user.Public()
	if err := s.cache.SetUserSnapshot(ctx, public, s.cfg.UserCacheTTL); err != nil {
		s.logger.Warnf("user snapshot write: %v", err)
	}
	return &public, nil
}

// decodeAccessToken verifies signature (and, unless skipExpiry is set, the
// expiry) of an access token. skipExpiry lets revocation inspect tokens that
// have already lapsed.
func (s *authService) decodeAccessToken(rawToken string, skipExpiry bool) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if skipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(*jwt.Token) (any, error) {
		return s.cfg.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// gravatarURL derives the default avatar for an email address.
func gravatarURL(email string) (string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("parse email: %w", err)
	}
	sum := md5.Sum([]byte(normalizeEmail(email)))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon", hex.EncodeToString(sum[:])), nil
}
