package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"contacts-api/internal/domain"
)

const (
	blacklistPrefix = "bl:"
	userPrefix      = "user:"
)

// Client wraps Redis access for the two auth namespaces: the access-token
// deny-list and the short-TTL user snapshot cache.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis at the given URL and verifies the connection.
func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing go-redis client. Used by tests.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// BlacklistToken records a revoked access token for ttl. The entry expires
// together with the token it blocks, so the deny-list never outlives it.
func (c *Client) BlacklistToken(ctx context.Context, rawToken string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.rdb.Set(ctx, blacklistPrefix+rawToken, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether the raw access token has been revoked.
func (c *Client) IsBlacklisted(ctx context.Context, rawToken string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+rawToken).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return n > 0, nil
}

// GetUserSnapshot returns the cached public view for the username, or nil on
// a cache miss.
func (c *Client) GetUserSnapshot(ctx context.Context, username string) (*domain.PublicUser, error) {
	data, err := c.rdb.Get(ctx, userPrefix+username).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get user snapshot: %w", err)
	}

	var snapshot domain.PublicUser
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		// corrupt entry, drop it and fall back to the store
		c.rdb.Del(ctx, userPrefix+username)
		return nil, fmt.Errorf("unmarshal user snapshot: %w", err)
	}
	return &snapshot, nil
}

// SetUserSnapshot caches the public view for ttl.
func (c *Client) SetUserSnapshot(ctx context.Context, user domain.PublicUser, ttl time.Duration) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, userPrefix+user.Username, data, ttl).Err(); err != nil {
		return fmt.Errorf("set user snapshot: %w", err)
	}
	return nil
}

// InvalidateUser drops the cached snapshot for the username.
func (c *Client) InvalidateUser(ctx context.Context, username string) error {
	if err := c.rdb.Del(ctx, userPrefix+username).Err(); err != nil {
		return fmt.Errorf("invalidate user snapshot: %w", err)
	}
	return nil
}
