package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"contacts-api/internal/cache"
	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

// ErrUserNotFound is returned when an email-flow target user does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserService handles the account flows that run outside a login session:
// email confirmation, password reset and avatar updates.
type UserService interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ConfirmEmail(ctx context.Context, token string) (alreadyConfirmed bool, err error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	UpdateAvatar(ctx context.Context, email, avatarURL string) (*domain.User, error)
}

// UserConfig carries the user-service tunables.
type UserConfig struct {
	JWTSecret     []byte
	EmailTokenTTL time.Duration
	PasswordMin   int
	PasswordMax   int
}

type userService struct {
	users  repository.UserRepository
	cache  *cache.Client
	cfg    UserConfig
	logger *logrus.Logger
}

func NewUserService(users repository.UserRepository, cacheClient *cache.Client, cfg UserConfig, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{users: users, cache: cacheClient, cfg: cfg, logger: logger}
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	email, err := ParseEmailToken(s.cfg.JWTSecret, token)
	if err != nil {
		return false, err
	}

	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.Confirmed {
		return true, nil
	}

	if err := s.users.SetConfirmed(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	s.invalidateSnapshot(ctx, user.Username)
	return false, nil
}

func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := ParseEmailToken(s.cfg.JWTSecret, token)
	if err != nil {
		return err
	}
	if len(newPassword) < s.cfg.PasswordMin || len(newPassword) > s.cfg.PasswordMax {
		return fmt.Errorf("%w: password must be between %d and %d characters",
			ErrValidation, s.cfg.PasswordMin, s.cfg.PasswordMax)
	}

	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.UpdatePassword(ctx, email, string(hash)); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx, user.Username)
	return nil
}

func (s *userService) UpdateAvatar(ctx context.Context, email, avatarURL string) (*domain.User, error) {
	user, err := s.users.UpdateAvatar(ctx, normalizeEmail(email), avatarURL)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.invalidateSnapshot(ctx, user.Username)
	return user, nil
}

// invalidateSnapshot is best effort; a stale snapshot expires on its own
// within the cache TTL.
func (s *userService) invalidateSnapshot(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, username); err != nil {
		s.logger.Warnf("invalidate user snapshot: %v", err)
	}
}
