package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Opts tunes the sql pool shared by the MySQL and ClickHouse connectors.
type Opts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// NewMySQL opens a *sqlx.DB against MySQL and verifies it with a bounded ping.
func NewMySQL(dsn string, opts Opts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	return open("mysql", dsn, opts, 5*time.Second)
}

// NewClickHouse opens a *sqlx.DB against ClickHouse for the event archive.
// DSN example: clickhouse://default:@localhost:9000/loygw?dial_timeout=5s&compress=true
func NewClickHouse(dsn string, opts Opts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	return open("clickhouse", dsn, opts, 3*time.Second)
}

func open(driver, dsn string, opts Opts, defaultPing time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = defaultPing
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
