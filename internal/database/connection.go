// Package database owns the Postgres connection pool shared by the
// Hypergraph Store and the World Model Service repository: a pgx pool
// config layer (Config, with env overrides and validation) plus Connect,
// which builds and pings a pgxpool.Pool.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// Config describes a Postgres connection and its pool sizing.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the defaults used when no environment override is
// present: a local plastics database under the l9 role.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		User:            "l9",
		Password:        "",
		Database:        "plastics",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// LoadFromEnv overrides c in place from DB_HOST, DB_PORT, DB_USER,
// DB_PASSWORD, DB_NAME and DB_SSL_MODE. An unparsable DB_PORT leaves the
// existing value untouched rather than failing the whole load.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		c.SSLMode = v
	}
}

// Validate checks the fields Connect depends on.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections must be non-negative")
	}
	return nil
}

// ConnectionString renders the libpq key=value DSN Connect parses into a
// pgxpool.Config. password is omitted when empty rather than emitted blank,
// so logging this string never leaks an empty-but-present secret field.
func (c *Config) ConnectionString() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// Connect validates config, builds a pgxpool.Pool sized per MaxOpenConns /
// MaxIdleConns / ConnMaxLifetime / ConnMaxIdleTime, and pings it before
// returning. The pool backs both the Hypergraph Store's JSONB/embeddings
// tables and its Postgres-projected property graph.
func Connect(config *Config, logger *logrus.Logger) (*pgxpool.Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString())
	if err != nil {
		return nil, sharederrors.Wrapf(err, "parse pgx pool config")
	}
	poolConfig.MaxConns = int32(config.MaxOpenConns)
	poolConfig.MinConns = int32(config.MaxIdleConns)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, sharederrors.DatabaseError("connect to postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sharederrors.DatabaseError("ping postgres", err)
	}

	logger.WithFields(logging.DatabaseFields("connect", config.Database).ToLogrus()).
		Info("connected to postgres")
	return pool, nil
}
