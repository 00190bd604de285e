package workflow

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapAdapter routes temporal SDK logs through zap.
type ZapAdapter struct {
	zl *zap.Logger
}

var _ log.Logger = (*ZapAdapter)(nil)

func NewZapAdapter(zl *zap.Logger) *ZapAdapter {
	return &ZapAdapter{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l *ZapAdapter) fields(keyvals []interface{}) []zap.Field {
	if len(keyvals)%2 != 0 {
		return []zap.Field{zap.Any("keyvals", keyvals)}
	}

	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	return fields
}

func (l *ZapAdapter) Debug(msg string, keyvals ...interface{}) {
	l.zl.Debug(msg, l.fields(keyvals)...)
}

func (l *ZapAdapter) Info(msg string, keyvals ...interface{}) {
	l.zl.Info(msg, l.fields(keyvals)...)
}

func (l *ZapAdapter) Warn(msg string, keyvals ...interface{}) {
	l.zl.Warn(msg, l.fields(keyvals)...)
}

func (l *ZapAdapter) Error(msg string, keyvals ...interface{}) {
	l.zl.Error(msg, l.fields(keyvals)...)
}

func (l *ZapAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZapAdapter{zl: l.zl.With(l.fields(keyvals)...)}
}
