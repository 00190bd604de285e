package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"rewards-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

// Generator issues human-readable codes backed by redis counters.
type Generator interface {
	NextCompanyCode(ctx context.Context) (string, error)
	NextPackageCode(ctx context.Context, companyID string) (string, error)
	NextTransactionCode(ctx context.Context, companyID string) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
	}
}

func (g *RedisGenerator) NextCompanyCode(ctx context.Context) (string, error) {
	seq, err := g.rdb.Incr(ctx, rediskey.NamespaceKey(rediskey.SequencePrefix, "company")).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("C%04d", seq), nil
}

func (g *RedisGenerator) NextPackageCode(ctx context.Context, companyID string) (string, error) {
	return g.nextDailyCode(ctx, "PKG", companyID)
}

func (g *RedisGenerator) NextTransactionCode(ctx context.Context, companyID string) (string, error) {
	return g.nextDailyCode(ctx, "TXN", companyID)
}

func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix, scope string) (string, error) {
	now := time.Now().UTC()
	today := now.Format("060102")
	key := rediskey.BuildSequenceKey(prefix, scope, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		endOfDay := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		_ = g.rdb.ExpireAt(ctx, key, endOfDay).Err()
	}

	return FormatDailyCode(prefix, today, seq)
}

// FormatDailyCode renders PREFIX-YYMMDD-SSSRR where SSS is the base36
// sequence padded to three characters and RR a random suffix.
func FormatDailyCode(prefix, day string, seq int64) (string, error) {
	encoded := strings.ToUpper(strconv.FormatInt(seq, 36))
	if len(encoded) < 3 {
		encoded = strings.Repeat("0", 3-len(encoded)) + encoded
	}

	suffix, err := randomAlphaNumeric(2)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s%s", prefix, day, encoded, suffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
