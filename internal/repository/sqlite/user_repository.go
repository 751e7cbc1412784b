package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'USER',
	confirmed INTEGER NOT NULL DEFAULT 0,
	avatar TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, role, confirmed, avatar, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Confirmed,
		nullString(user.Avatar),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

const selectUserColumns = `
SELECT id, username, email, password_hash, role, confirmed, avatar, created_at, updated_at
FROM users
`

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`WHERE username = ?`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) SetConfirmed(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET confirmed = 1, updated_at = ? WHERE email = ?`,
		time.Now().UTC(), email,
	)
	if err != nil {
		return fmt.Errorf("confirm user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, email, avatarURL string) (*domain.User, error) {
	if _, err := r.db.ExecContext(ctx, `
UPDATE users SET avatar = ?, updated_at = ? WHERE email = ?`,
		nullString(avatarURL), time.Now().UTC(), email,
	); err != nil {
		return nil, fmt.Errorf("update avatar: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	if _, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().UTC(), email,
	); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user   domain.User
		role   string
		avatar sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Confirmed,
		&avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Role = domain.Role(role)
	user.Avatar = avatar.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
