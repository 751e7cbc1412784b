package repository

import (
	"context"
	"time"

	"contacts-api/internal/domain"
)

// RefreshTokenRepository defines persistence operations for the token ledger.
//
// GetActiveByHash checks expiry and revocation inside the lookup predicate so
// that a token cannot expire between check and use.
type RefreshTokenRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, token *domain.RefreshToken) (int64, error)
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	GetActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, id int64, revokedAt time.Time) error
}
