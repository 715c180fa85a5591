package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const signOutKeyPrefix = "signout:"

// RedisRevoker records sign-outs in Redis so every instance refuses tokens
// issued before them. It is the identity provider used by sessions.
type RedisRevoker struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisRevoker creates a revoker. ttl should cover the lifetime of the
// longest token the identity provider issues.
func NewRedisRevoker(client *redis.Client, ttl time.Duration) *RedisRevoker {
	return &RedisRevoker{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisRevoker) key(userID string) string {
	return signOutKeyPrefix + userID
}

// SignOut revokes every token of userID issued up to now.
func (r *RedisRevoker) SignOut(ctx context.Context, userID string) error {
	return r.client.Set(ctx, r.key(userID), r.now().UnixMilli(), r.ttl).Err()
}

// RevokedAt returns when userID last signed out. ok is false when no
// sign-out is on record.
func (r *RedisRevoker) RevokedAt(ctx context.Context, userID string) (t time.Time, ok bool, err error) {
	ms, err := r.client.Get(ctx, r.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
