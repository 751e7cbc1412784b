package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	assert.Equal(t, "data/contacts.db", cfg.Database.Path)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)

	assert.Empty(t, cfg.Auth.JWTSecret, "the JWT secret has no default on purpose")
	assert.Equal(t, 15, cfg.Auth.AccessTTLMinutes)
	assert.Equal(t, 7, cfg.Auth.RefreshTTLDays)
	assert.Equal(t, 7, cfg.Auth.EmailTokenTTLDays)
	assert.Equal(t, 5, cfg.Auth.UserCacheSeconds)
	assert.Equal(t, 3, cfg.Auth.UsernameMin)
	assert.Equal(t, 30, cfg.Auth.UsernameMax)
	assert.Equal(t, 8, cfg.Auth.PasswordMin)
	assert.Equal(t, 64, cfg.Auth.PasswordMax)

	assert.Equal(t, "avatars", cfg.Storage.KeyPrefix)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONTACTS_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("CONTACTS_AUTH_JWTSECRET", "env-secret")
	t.Setenv("CONTACTS_AUTH_ACCESSTTLMINUTES", "30")
	t.Setenv("CONTACTS_REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30, cfg.Auth.AccessTTLMinutes)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}
