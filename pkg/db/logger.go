package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	applog "rewards-controlplane/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const defaultSlowQuery = 200 * time.Millisecond

// queryLogger writes gorm events through zap. Query lines carry the trace
// and span of the request that issued them.
type queryLogger struct {
	level   logger.LogLevel
	slow    time.Duration
	showSQL bool
}

func newQueryLogger(level logger.LogLevel, slow time.Duration, showSQL bool) *queryLogger {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &queryLogger{level: level, slow: slow, showSQL: showSQL}
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		applog.FromContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		applog.FromContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		applog.FromContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.Int64("rows", rows),
		zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
	}
	zapLog := applog.FromContext(ctx)

	switch {
	// Lookups that find nothing are expected; repositories turn them into (nil, nil).
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound) && l.level >= logger.Error:
		zapLog.Error("db query failed", append(fields, zap.String("sql", sql), zap.Error(err))...)
	case elapsed > l.slow && l.level >= logger.Warn:
		zapLog.Warn("db slow query", append(fields, zap.String("sql", sql), zap.Duration("threshold", l.slow))...)
	case l.level >= logger.Info && l.showSQL:
		zapLog.Debug("db query", append(fields, zap.String("sql", sql))...)
	}
}
