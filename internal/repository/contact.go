package repository

import (
	"context"

	"contacts-api/internal/domain"
)

// ContactRepository defines persistence operations for Contact entities.
// Every lookup is scoped to the owning user.
type ContactRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, contact *domain.Contact) (int64, error)
	GetByID(ctx context.Context, userID, contactID int64) (*domain.Contact, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]domain.Contact, error)
	Update(ctx context.Context, contact *domain.Contact) error
	Delete(ctx context.Context, userID, contactID int64) error
	Search(ctx context.Context, userID int64, query string) ([]domain.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]domain.Contact, error)
	ExistsOtherWithEmailOrPhone(ctx context.Context, userID, excludeID int64, email, phone string) (bool, error)
}
