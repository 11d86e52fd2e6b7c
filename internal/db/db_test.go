package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"pulse/internal/config"
)

func TestWithTimezone(t *testing.T) {
	cases := []struct {
		dsn, tz, want string
	}{
		{"host=db user=pulse", "UTC", "host=db user=pulse TimeZone=UTC"},
		{"host=db TimeZone=Asia/Tokyo", "UTC", "host=db TimeZone=Asia/Tokyo"},
		{"host=db", "", "host=db"},
		{"postgres://pulse@db:5432/pulse?sslmode=disable", "America/Los_Angeles", "postgres://pulse@db:5432/pulse?TimeZone=America%2FLos_Angeles&sslmode=disable"},
	}
	for _, tc := range cases {
		got, err := withTimezone(tc.dsn, tc.tz)
		if err != nil || got != tc.want {
			t.Fatalf("withTimezone(%q,%q)=%q err=%v want=%q", tc.dsn, tc.tz, got, err, tc.want)
		}
	}
	if _, err := withTimezone("host=db", "UTC';DROP"); err == nil {
		t.Fatalf("want error for unsafe timezone")
	}
}

func TestOpen_RejectsEmptyDSN(t *testing.T) {
	if _, err := Open(context.Background(), config.DBConfig{DSN: "  "}, nil); err == nil || !strings.Contains(err.Error(), "dsn is empty") {
		t.Fatalf("err=%v want empty dsn error", err)
	}
}

func TestGormLogger_FailedAndSlowQueries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core), 100*time.Millisecond)
	fc := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), fc, nil)
	if logs.Len() != 0 {
		t.Fatalf("logs=%d want=0", logs.Len())
	}
	l.Trace(ctx, time.Now(), fc, errors.New("boom"))
	l.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	entries := logs.All()
	if len(entries) != 2 || entries[0].Message != "query failed" || entries[1].Message != "slow query" {
		t.Fatalf("entries=%+v want failed then slow", entries)
	}
}
