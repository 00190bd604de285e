package security

import (
	"context"
	"errors"
	"time"

	"rewards-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps logged-out token ids until the token would have
// expired anyway, and the live token ids of each user so a role change can
// end all of them.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, tokens *TokenIssuer) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: tokens.TTL()}
}

func remaining(claims *Claims, fallback time.Duration) time.Duration {
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left > 0 {
			return left
		}
	}
	return fallback
}

func (s *SessionStore) Revoke(ctx context.Context, claims *Claims) error {
	return s.rdb.Set(ctx, rediskey.BuildSessionRevokedKey(claims.ID), 1, remaining(claims, time.Minute)).Err()
}

// Track records a freshly issued token under its user. The set lives as
// long as the newest token.
func (s *SessionStore) Track(ctx context.Context, claims *Claims) error {
	key := rediskey.BuildUserSessionsKey(claims.UserID())
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, key, claims.ID)
		p.Expire(ctx, key, remaining(claims, s.ttl))
		return nil
	})
	return err
}

// RevokeUser revokes every tracked token of userID.
func (s *SessionStore) RevokeUser(ctx context.Context, userID string) error {
	key := rediskey.BuildUserSessionsKey(userID)
	jtis, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, jti := range jtis {
			p.Set(ctx, rediskey.BuildSessionRevokedKey(jti), 1, s.ttl)
		}
		p.Del(ctx, key)
		return nil
	})
	return err
}

func (s *SessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := s.rdb.Get(ctx, rediskey.BuildSessionRevokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
