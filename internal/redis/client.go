// Package redis connects the roll-session repository to Redis
package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

// Client is the set of commands the roll-session repository issues
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Client = (*redis.Client)(nil)

// Config configures a single-instance client
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool

	PoolSize        int
	MinIdleConns    int
	ConnMaxIdleTime time.Duration
	MaxRetries      int
	// PingTimeout bounds the reachability check in Connect
	PingTimeout time.Duration
}

// DefaultConfig returns the pool settings the server runs with
func DefaultConfig(addr string) *Config {
	return &Config{
		Addr:            addr,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
		MaxRetries:      3,
		PingTimeout:     5 * time.Second,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("Addr", c.Addr, vb)
	if c.DB < 0 {
		vb.InvalidField("DB", "must not be negative")
	}
	if c.PoolSize < 0 {
		vb.InvalidField("PoolSize", "must not be negative")
	}
	return vb.Build()
}

// NewClient creates a client without contacting the server
func NewClient(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("redis config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid redis config")
	}

	opts := &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		MaxRetries:      cfg.MaxRetries,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return redis.NewClient(opts), nil
}

// Connect creates a client and checks the server answers a PING
func Connect(ctx context.Context, cfg *Config) (Client, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() // nolint:errcheck // safe to ignore in cleanup
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "redis unreachable").
			WithMeta("addr", cfg.Addr)
	}
	return client, nil
}
