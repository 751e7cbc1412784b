package repository

import (
	"context"

	"contacts-api/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	SetConfirmed(ctx context.Context, email string) error
	UpdateAvatar(ctx context.Context, email, avatarURL string) (*domain.User, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) (*domain.User, error)
}
