package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"github.com/debugmarathon/apiserver/config"
)

const (
	defaultDBDriver    = "postgres"
	defaultConnMaxIdle = 2 * time.Minute
	defaultConnMaxLife = 30 * time.Minute
	maxIdleConns       = 5
	retryBaseDelay     = time.Second
	defaultPingTimeout = 5 * time.Second
)

// DSN builds the postgres connection URL for cfg.
func DSN(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}

	q := u.Query()
	q.Set("sslmode", sslmode)
	if cfg.PoolTimeoutSeconds > 0 {
		q.Set("connect_timeout", strconv.Itoa(cfg.PoolTimeoutSeconds))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Open connects to postgres and pings it, retrying with exponential backoff
// up to cfg.MaxRetries times while the database is unreachable.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open(defaultDBDriver, DSN(cfg))
	if err != nil {
		return nil, err
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	db.SetConnMaxIdleTime(defaultConnMaxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLife)
	db.SetMaxIdleConns(min(maxIdleConns, poolSize))
	db.SetMaxOpenConns(poolSize)

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(retryBaseDelay))

	pingTimeout := cfg.PoolTimeout()
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
	}

	return db, nil
}
