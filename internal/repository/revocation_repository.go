package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRepo records revoked token ids in Redis. An entry lives exactly
// as long as the token it revokes would have, so the set never outgrows
// the population of still-valid tokens.
type RevocationRepo struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRevocationRepo(rdb redis.Cmdable, prefix string) *RevocationRepo {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RevocationRepo{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RevocationRepo) key(jti string) string { return r.prefix + ":" + jti }

// Revoke marks jti as revoked until exp. Already expired tokens are not
// recorded.
func (r *RevocationRepo) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := exp.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.key(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti has been revoked.
func (r *RevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
