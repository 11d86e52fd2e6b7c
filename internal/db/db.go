package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pulse/internal/config"
)

const pingTimeout = 5 * time.Second

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects the signal log database and checks it answers. The session
// timezone rides in the DSN so every pooled connection gets it.
func Open(ctx context.Context, cfg config.DBConfig, l *zap.Logger) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("db: dsn is empty (set db.dsn or PULSE_DB_DSN)")
	}
	dsn, err := withTimezone(cfg.DSN, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  newGormLogger(l, cfg.SlowQuery),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	applyPool(sqldb, cfg)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(pctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &DB{Gorm: gdb, SQL: sqldb}, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

// applyPool keeps at least one idle connection so the per-user advisory
// lock path does not dial on every admission.
func applyPool(sqldb *sql.DB, cfg config.DBConfig) {
	open := cfg.MaxOpenConns
	if open <= 0 {
		open = 20
	}
	idle := cfg.MaxIdleConns
	if idle <= 0 {
		idle = 1
	}
	if idle > open {
		idle = open
	}
	sqldb.SetMaxOpenConns(open)
	sqldb.SetMaxIdleConns(idle)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// withTimezone adds TimeZone to a key=value or postgres:// DSN unless the
// DSN already names one.
func withTimezone(dsn, tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.Contains(strings.ToLower(dsn), "timezone=") {
		return dsn, nil
	}
	if strings.ContainsAny(tz, "'\\; ") {
		return "", fmt.Errorf("db: invalid timezone %q", tz)
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("db: parse dsn: %w", err)
		}
		q := u.Query()
		q.Set("TimeZone", tz)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return strings.TrimSpace(dsn) + " TimeZone=" + tz, nil
}
