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

const createContactsTable = `
CREATE TABLE IF NOT EXISTS contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	birthday DATETIME NOT NULL,
	additional_info TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (email, user_id),
	UNIQUE (phone, user_id)
);
`

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) repository.ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createContactsTable); err != nil {
		return fmt.Errorf("create contacts table: %w", err)
	}
	return nil
}

func (r *ContactRepository) Create(ctx context.Context, contact *domain.Contact) (int64, error) {
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO contacts (user_id, first_name, last_name, email, phone, birthday, additional_info, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.UserID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Birthday.UTC(),
		nullString(contact.AdditionalInfo),
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert contact: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert contact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("contact last insert id: %w", err)
	}
	contact.ID = id
	return id, nil
}

const selectContactColumns = `
SELECT id, user_id, first_name, last_name, email, phone, birthday, additional_info, created_at, updated_at
FROM contacts
`

func (r *ContactRepository) GetByID(ctx context.Context, userID, contactID int64) (*domain.Contact, error) {
	row := r.db.QueryRowContext(ctx, selectContactColumns+`WHERE id = ? AND user_id = ?`, contactID, userID)
	return scanContact(row)
}

func (r *ContactRepository) List(ctx context.Context, userID int64, limit, offset int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, selectContactColumns+`
WHERE user_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (r *ContactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	contact.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE contacts
SET first_name = ?, last_name = ?, email = ?, phone = ?, birthday = ?, additional_info = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Birthday.UTC(),
		nullString(contact.AdditionalInfo),
		contact.UpdatedAt,
		contact.ID,
		contact.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update contact: %w", repository.ErrDuplicate)
		}
		return fmt.Errorf("update contact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ContactRepository) Delete(ctx context.Context, userID, contactID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, contactID, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ContactRepository) Search(ctx context.Context, userID int64, query string) ([]domain.Contact, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, selectContactColumns+`
WHERE user_id = ? AND (first_name LIKE ? OR last_name LIKE ? OR email LIKE ?)
ORDER BY id`,
		userID, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

// UpcomingBirthdays filters in memory so the year-agnostic month/day window
// does not depend on how the driver formats stored timestamps.
func (r *ContactRepository) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, selectContactColumns+`WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	defer rows.Close()

	all, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var matched []domain.Contact
	for _, c := range all {
		if birthdayWithin(c.Birthday, now, days) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (r *ContactRepository) ExistsOtherWithEmailOrPhone(ctx context.Context, userID, excludeID int64, email, phone string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(1) FROM contacts
WHERE user_id = ? AND id != ? AND (email = ? OR phone = ?)`,
		userID, excludeID, email, phone,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check contact duplicates: %w", err)
	}
	return count > 0, nil
}

func birthdayWithin(birthday, now time.Time, days int) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	next := time.Date(now.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return !next.After(today.AddDate(0, 0, days))
}

func scanContact(row interface {
	Scan(dest ...any) error
}) (*domain.Contact, error) {
	var (
		contact domain.Contact
		info    sql.NullString
	)
	if err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.Phone,
		&contact.Birthday,
		&info,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan contact: %w", err)
	}
	contact.AdditionalInfo = info.String
	return &contact, nil
}

func collectContacts(rows *sql.Rows) ([]domain.Contact, error) {
	var contacts []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
