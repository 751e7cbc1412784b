package domain

import "time"

// Role is the flat authorization role attached to a user.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User represents a registered account of the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Confirmed    bool
	Avatar       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the outward-facing view of a user. The password hash is
// deliberately absent and must never be added.
type PublicUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar,omitempty"`
	Role      Role   `json:"role"`
	Confirmed bool   `json:"confirmed"`
}

// Public returns the serializable view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Role:      u.Role,
		Confirmed: u.Confirmed,
	}
}
