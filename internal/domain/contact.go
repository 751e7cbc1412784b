package domain

import "time"

// Contact is an address-book entry owned by a single user. Email and phone
// are unique within that user's contacts, not globally.
type Contact struct {
	ID             int64
	UserID         int64
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Birthday       time.Time
	AdditionalInfo string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
