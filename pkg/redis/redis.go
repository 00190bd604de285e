package redis

import (
	"context"
	"time"

	"rewards-controlplane/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

const (
	pingAttempts = 5
	pingInterval = 3 * time.Second
	pingTimeout  = 2 * time.Second
)

func options(c *config.Config) *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	}
}

// New returns a client even when redis never answers the startup probe;
// commands then fail individually.
func New(lc fx.Lifecycle, c *config.Config) *redis.Client {
	rdb := redis.NewClient(options(c))
	zapLog := zap.L().With(zap.String("addr", c.Redis.Addr), zap.Int("db", c.Redis.DB))

	if err := probe(rdb, pingAttempts, pingInterval); err != nil {
		zapLog.Error("redis unreachable, continuing with lazy connect", zap.Error(err))
	} else {
		zapLog.Info("redis connected", zap.Int("pool_size", c.Redis.PoolSize))
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})
	return rdb
}

func probe(rdb *redis.Client, attempts int, interval time.Duration) error {
	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			return nil
		}
		zap.L().Warn("redis not ready", zap.Int("attempt", i), zap.Error(err))
		if i < attempts {
			time.Sleep(interval)
		}
	}
	return err
}
