package detection

import (
	"context"
	"time"

	"rewards-controlplane/pkg/errutil"
	"rewards-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

const startLockTTL = 10 * time.Second

// Locker serialises cycle starts per company across api replicas.
type Locker interface {
	Lock(ctx context.Context, companyID string) (unlock func(), err error)
}

type redisLocker struct {
	rdb *redis.Client
}

func NewLocker(rdb *redis.Client) Locker {
	if rdb == nil {
		return nil
	}
	return &redisLocker{rdb: rdb}
}

func (l *redisLocker) Lock(ctx context.Context, companyID string) (func(), error) {
	key := rediskey.BuildCycleLockKey(companyID)
	ok, err := l.rdb.SetNX(ctx, key, "1", startLockTTL).Result()
	if err != nil {
		return nil, errutil.ServiceUnavailable("failed to acquire detection lock", err)
	}
	if !ok {
		return nil, errutil.Conflict("a detection cycle is already starting", nil)
	}
	return func() {
		l.rdb.Del(context.WithoutCancel(ctx), key)
	}, nil
}
