package db

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger reports failed and slow statements through zap. Record-not-found
// is an expected lookup result and stays silent.
type gormLogger struct {
	l    *zap.Logger
	slow time.Duration
}

func newGormLogger(l *zap.Logger, slow time.Duration) gormlogger.Interface {
	if l == nil {
		l = zap.NewNop()
	}
	return &gormLogger{l: l.Named("gorm"), slow: slow}
}

func (g *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return g }

func (g *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	g.l.Sugar().Debugf(msg, args...)
}

func (g *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	g.l.Sugar().Warnf(msg, args...)
}

func (g *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	g.l.Sugar().Errorf(msg, args...)
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	took := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.l.Warn("query failed", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("took", took), zap.Error(err))
	case g.slow > 0 && took > g.slow:
		sql, rows := fc()
		g.l.Warn("slow query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("took", took))
	}
}
