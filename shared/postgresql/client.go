package postgresql

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// Config holds PostgreSQL connection and pool settings
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// ApplicationName shows up in pg_stat_activity
	ApplicationName string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	ConnectRetries       int
	ConnectRetryInterval time.Duration
}

// DSN renders a postgres:// URL understood by lib/pq. Credentials are escaped.
func (c *Config) DSN() string {
	q := url.Values{}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q.Set("sslmode", sslMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Client wraps the sqlx pool shared by the job stores
type Client struct {
	db     *sqlx.DB
	config *Config
	logger *slog.Logger
}

// NewClient opens the pool and waits until the database answers a ping
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	logger = logger.With(slog.String("component", "postgresql"))

	db, err := sqlx.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	c := &Client{db: db, config: config, logger: logger}
	if err := c.waitReady(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("PostgreSQL ready",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
		slog.Int("max_open_conns", config.MaxOpenConns),
	)
	return c, nil
}

// waitReady pings until success or the retry budget runs out
func (c *Client) waitReady() error {
	attempts := max(c.config.ConnectRetries, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = c.db.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}

		c.logger.Warn("PostgreSQL not reachable",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)
		if attempt < attempts {
			time.Sleep(c.config.ConnectRetryInterval)
		}
	}

	return fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", attempts, err)
}

// GetDB returns the underlying pool
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Close closes the pool
func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL pool: %w", err)
	}
	c.logger.Info("PostgreSQL pool closed")
	return nil
}

// HealthCheck reports whether the database answers within two seconds
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	if err := c.db.GetContext(ctx, &one, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
