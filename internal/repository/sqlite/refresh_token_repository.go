package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

const createRefreshTokensTable = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	token_hash TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	expired_at DATETIME NOT NULL,
	revoked_at DATETIME,
	ip_address TEXT,
	user_agent TEXT
);
`

type RefreshTokenRepository struct {
	db *sql.DB
}

func NewRefreshTokenRepository(db *sql.DB) repository.RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRefreshTokensTable); err != nil {
		return fmt.Errorf("create refresh_tokens table: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) (int64, error) {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO refresh_tokens (user_id, token_hash, created_at, expired_at, ip_address, user_agent)
VALUES (?, ?, ?, ?, ?, ?)`,
		token.UserID,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiredAt,
		nullString(token.IPAddress),
		nullString(token.UserAgent),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert refresh token: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert refresh token: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("refresh token last insert id: %w", err)
	}
	token.ID = id
	return id, nil
}

const selectTokenColumns = `
SELECT id, user_id, token_hash, created_at, expired_at, revoked_at, ip_address, user_agent
FROM refresh_tokens
`

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, selectTokenColumns+`WHERE token_hash = ?`, tokenHash)
	return scanRefreshToken(row)
}

// GetActiveByHash matches hash, expiry and revocation in a single predicate.
func (r *RefreshTokenRepository) GetActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, selectTokenColumns+`
WHERE token_hash = ? AND expired_at > ? AND revoked_at IS NULL`,
		tokenHash, now.UTC(),
	)
	return scanRefreshToken(row)
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id int64, revokedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		revokedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanRefreshToken(row interface {
	Scan(dest ...any) error
}) (*domain.RefreshToken, error) {
	var (
		token     domain.RefreshToken
		revokedAt sql.NullTime
		ipAddress sql.NullString
		userAgent sql.NullString
	)
	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiredAt,
		&revokedAt,
		&ipAddress,
		&userAgent,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	token.IPAddress = ipAddress.String
	token.UserAgent = userAgent.String
	return &token, nil
}
