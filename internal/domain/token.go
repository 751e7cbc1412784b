package domain

import "time"

// RefreshToken is a persisted session record. Only the SHA-256 hash of the
// secret is ever stored; the raw value exists exactly once, in the response
// that issued it.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	CreatedAt time.Time
	ExpiredAt time.Time
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
}

// Active reports whether the token can still be exchanged at the given time.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiredAt.After(now)
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}
