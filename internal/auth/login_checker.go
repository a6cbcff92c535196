package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
		NowFunc:     time.Now,
	}
}

// Check resolves the token into the user id of a live session.
func (c *LoginChecker) Check(ctx context.Context, token string) (string, bool, error) {
	sessionKey := sessionKeyPrefix + token
	cmd := c.redisClient.Get(ctx, sessionKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}

	session, err := parseSession(cmd.Val())
	if err != nil {
		return "", false, err
	}

	createdAt := time.Unix(session.CreatedAt, 0)
	if c.NowFunc().Sub(createdAt) > c.ttl {
		return "", false, nil
	}

	return session.UserID, true, nil
}
