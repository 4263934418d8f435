package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const denylistKeyPrefix = "accounts:session:denylist:"

// Denylist records revoked session token ids until they expire
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist keeps revoked token ids as expiring Redis keys
type RedisDenylist struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisDenylist creates a denylist backed by the given client
func NewRedisDenylist(rdb *redis.Client) *RedisDenylist {
	return &RedisDenylist{rdb: rdb, now: time.Now}
}

func denylistKey(jti string) string {
	return denylistKeyPrefix + jti
}

// Revoke denylists jti until the given time. Already expired tokens are ignored.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, denylistKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session denylist: %w", err)
	}
	return n > 0, nil
}

// NopDenylist never revokes anything. Used when SESSION_DENYLIST is off.
type NopDenylist struct{}

func (NopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (NopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
