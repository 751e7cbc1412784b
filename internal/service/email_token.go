package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an email confirmation or password-reset
// token cannot be decoded.
var ErrMalformedToken = errors.New("malformed email token")

// CreateEmailToken issues a signed token carrying the email address, used in
// confirmation and password-reset links.
func CreateEmailToken(secret []byte, email string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign email token: %w", err)
	}
	return token, nil
}

// ParseEmailToken extracts the email address from a token produced by
// CreateEmailToken.
func ParseEmailToken(secret []byte, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" {
		return "", ErrMalformedToken
	}
	return claims.Subject, nil
}
