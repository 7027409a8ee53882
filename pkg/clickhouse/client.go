// Package clickhouse opens database/sql pools on the clickhouse-go v2 driver.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Option edits the driver options before the pool is opened.
type Option func(*ch.Options)

// WithAddr sets the server address; the native protocol default port is 9000, HTTP 8123.
func WithAddr(host string, port int) Option {
	return func(o *ch.Options) {
		o.Addr = []string{net.JoinHostPort(host, strconv.Itoa(port))}
	}
}

// WithAuth sets database and credentials.
func WithAuth(database, user, password string) Option {
	return func(o *ch.Options) {
		o.Auth = ch.Auth{Database: database, Username: user, Password: password}
	}
}

// WithHTTP switches from the native protocol to HTTP.
func WithHTTP(enabled bool) Option {
	return func(o *ch.Options) {
		if enabled {
			o.Protocol = ch.HTTP
		}
	}
}

// WithPool bounds the connection pool.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) Option {
	return func(o *ch.Options) {
		o.MaxOpenConns = maxOpen
		o.MaxIdleConns = maxIdle
		o.ConnMaxLifetime = lifetime
	}
}

// WithTimeouts sets the dial and read timeouts. Writes are bounded by the caller context.
func WithTimeouts(dial, read time.Duration) Option {
	return func(o *ch.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = read
	}
}

// WithAsyncInsert lets the server buffer inserts; wait makes inserts return after the flush.
func WithAsyncInsert(enabled, wait bool) Option {
	return func(o *ch.Options) {
		if !enabled {
			return
		}
		o.Settings["async_insert"] = 1
		if wait {
			o.Settings["wait_for_async_insert"] = 1
		} else {
			o.Settings["wait_for_async_insert"] = 0
		}
	}
}

// WithMaxExecutionTime caps every query server-side, in whole seconds.
func WithMaxExecutionTime(d time.Duration) Option {
	return func(o *ch.Options) {
		if s := int(d / time.Second); s > 0 {
			o.Settings["max_execution_time"] = s
		}
	}
}

// Options applies opts over the client defaults.
func Options(opts ...Option) *ch.Options {
	o := &ch.Options{
		Addr:            []string{"localhost:9000"},
		Auth:            ch.Auth{Database: "default", Username: "default"},
		Protocol:        ch.Native,
		Settings:        ch.Settings{},
		Compression:     &ch.Compression{Method: ch.CompressionLZ4},
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Client owns the pool shared by the archive and the health probe.
type Client struct {
	db *sql.DB
}

// NewClient opens a pool and pings within ctx.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := Options(opts...)
	if len(o.Addr) == 0 || o.Addr[0] == "" {
		return nil, errors.New("clickhouse: address is required")
	}
	db := ch.OpenDB(o)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", o.Addr[0], err)
	}
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an existing pool, e.g. a sqlmock in tests.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Migrate runs idempotent DDL in order and stops at the first failure.
func (c *Client) Migrate(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
