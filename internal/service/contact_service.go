package service

import (
	"context"
	"errors"
	"strings"

	"contacts-api/internal/domain"
	"contacts-api/internal/repository"
)

var (
	// ErrContactNotFound is returned when a contact does not exist for the user.
	ErrContactNotFound = errors.New("contact not found")
	// ErrContactExists is returned when another contact of the same user
	// already has the email or phone.
	ErrContactExists = errors.New("contact with this email or phone already exists")
)

const (
	defaultContactLimit = 50
	maxContactLimit     = 200
)

// ContactService implements the per-user address book.
type ContactService interface {
	Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)
	Get(ctx context.Context, userID, contactID int64) (*domain.Contact, error)
	List(ctx context.Context, userID int64, limit, offset int) ([]domain.Contact, error)
	Update(ctx context.Context, contact *domain.Contact) (*domain.Contact, error)
	Delete(ctx context.Context, userID, contactID int64) error
	Search(ctx context.Context, userID int64, query string) ([]domain.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]domain.Contact, error)
}

type contactService struct {
	contacts repository.ContactRepository
}

func NewContactService(contacts repository.ContactRepository) ContactService {
	return &contactService{contacts: contacts}
}

func (s *contactService) Create(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	normalizeContact(contact)
	if _, err := s.contacts.Create(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrContactExists
		}
		return nil, err
	}
	return contact, nil
}

func (s *contactService) Get(ctx context.Context, userID, contactID int64) (*domain.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, userID, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return contact, nil
}

func (s *contactService) List(ctx context.Context, userID int64, limit, offset int) ([]domain.Contact, error) {
	if limit <= 0 {
		limit = defaultContactLimit
	}
	if limit > maxContactLimit {
		limit = maxContactLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.contacts.List(ctx, userID, limit, offset)
}

func (s *contactService) Update(ctx context.Context, contact *domain.Contact) (*domain.Contact, error) {
	normalizeContact(contact)

	conflict, err := s.contacts.ExistsOtherWithEmailOrPhone(ctx, contact.UserID, contact.ID, contact.Email, contact.Phone)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrContactExists
	}

	if err := s.contacts.Update(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrContactExists
		}
		return nil, err
	}
	return s.Get(ctx, contact.UserID, contact.ID)
}

func (s *contactService) Delete(ctx context.Context, userID, contactID int64) error {
	if err := s.contacts.Delete(ctx, userID, contactID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrContactNotFound
		}
		return err
	}
	return nil
}

func (s *contactService) Search(ctx context.Context, userID int64, query string) ([]domain.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.contacts.Search(ctx, userID, query)
}

func (s *contactService) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]domain.Contact, error) {
	if days <= 0 {
		days = 7
	}
	return s.contacts.UpcomingBirthdays(ctx, userID, days)
}

func normalizeContact(c *domain.Contact) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = normalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}
