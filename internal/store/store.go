// Package store is the backing-store gateway: it owns the pgx connection
// pool and answers the two screening lookups used by the classifier.
//
// Lookups never return errors. Anything that prevents a lookup from running
// (no connection, a timeout, an unexpected driver error) is logged and
// reported as core.VerdictNotApplicable.
package store

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds pool sizing, timeouts and retry settings.
type Config struct {
	URL       string
	WalletDir string // optional directory with root.crt, client.crt, client.key

	MaxConns        int32
	MinConns        int32
	ConnectTimeout  time.Duration // per acquisition attempt
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	QueryTimeout    time.Duration

	AcquireRetries    int
	AcquireRetryDelay time.Duration
}

// Querier is the part of a pooled connection the lookups use.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// acquireFunc hands out a connection and the function that returns it.
type acquireFunc func(ctx context.Context) (Querier, func(), error)

// Store executes screening lookups against a pooled connection.
type Store struct {
	pool    *pgxpool.Pool
	acquire acquireFunc
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Wallet file names mapped onto libpq TLS parameters.
var walletFiles = []struct{ param, file string }{
	{"sslrootcert", "root.crt"},
	{"sslcert", "client.crt"},
	{"sslkey", "client.key"},
}

// PoolConfig parses the connection URL and applies pool settings and wallet
// certificates.
func PoolConfig(cfg Config) (*pgxpool.Config, error) {
	connString, err := withWallet(cfg.URL, cfg.WalletDir)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse database URL")
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	return poolConfig, nil
}

// withWallet adds TLS file parameters for every wallet file that exists.
func withWallet(connString, walletDir string) (string, error) {
	if walletDir == "" {
		return connString, nil
	}
	u, err := url.Parse(connString)
	if err != nil || u.Scheme == "" {
		return "", errors.Newf("wallet %s requires a URL-style connection string", walletDir)
	}
	q := u.Query()
	for _, wf := range walletFiles {
		path := filepath.Join(walletDir, wf.file)
		if _, err := os.Stat(path); err == nil && q.Get(wf.param) == "" {
			q.Set(wf.param, path)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open builds the pool. Connections are established lazily; a failed ping
// is logged but does not fail Open, since every lookup degrades on its own.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	s := New(pool, cfg, logger)

	pingCtx, cancel := context.WithTimeout(ctx, s.connectTimeout())
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		s.logger.Warn("database not reachable at startup, lookups will retry per call", "error", err)
	} else {
		s.logger.Info("connection pool ready",
			"host", poolConfig.ConnConfig.Host,
			"database", poolConfig.ConnConfig.Database,
			"max_conns", poolConfig.MaxConns)
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, cfg Config, logger *slog.Logger) *Store {
	s := newStore(cfg, logger, func(ctx context.Context) (Querier, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return conn, conn.Release, nil
	})
	s.pool = pool
	return s
}

func newStore(cfg Config, logger *slog.Logger, acquire acquireFunc) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AcquireRetries <= 0 {
		cfg.AcquireRetries = 3
	}
	return &Store{
		acquire: acquire,
		cfg:     cfg,
		logger:  logger.With("component", "store"),
		sleep:   sleepContext,
	}
}

// Close releases every pooled connection.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) connectTimeout() time.Duration {
	if s.cfg.ConnectTimeout > 0 {
		return s.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

// conn acquires a connection, retrying a fixed number of times with a fixed
// delay between attempts.
func (s *Store) conn(ctx context.Context) (Querier, func(), error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.AcquireRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.connectTimeout())
		q, release, err := s.acquire(attemptCtx)
		cancel()
		if err == nil {
			return q, release, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == s.cfg.AcquireRetries {
			break
		}
		s.logger.Warn("database connection attempt failed",
			"attempt", attempt, "error", err, "retry_in", s.cfg.AcquireRetryDelay)
		if err := s.sleep(ctx, s.cfg.AcquireRetryDelay); err != nil {
			lastErr = err
			break
		}
	}
	return nil, nil, errors.Wrapf(lastErr, "acquire connection after %d attempts", s.cfg.AcquireRetries)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
