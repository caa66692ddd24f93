// Package redis provides the Redis client behind the memory result cache.
// It wraps go-redis (github.com/redis/go-redis/v9) with OpenTelemetry spans
// and maps failures onto agentgate error codes.
//
// # Configuration
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret("my-password")
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Tests inject a fake or a miniredis-backed go-redis client with
// [NewFromClient].
//
// # Errors
//
// A missing key is reported as [sserr.CodeNotFound] so callers can tell a
// cache miss from a broken connection. Deadlines map to
// [sserr.CodeTimeoutStore]; anything else to [sserr.CodeInternalStore].
package redis

import (
	"fmt"
	"net/url"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// maxStatementTruncateLen caps db.query.text span attributes. Keys contain
// request hashes, not content, but values are never recorded.
const maxStatementTruncateLen = 100

const (
	// DefaultHost is the Redis host used when neither URI nor Host is set.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultPoolSize is the maximum number of pooled connections.
	DefaultPoolSize = 10

	// DefaultMinIdleConns is the number of idle connections kept warm.
	DefaultMinIdleConns = 2

	// DefaultDialTimeout bounds establishing a connection.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single read.
	DefaultReadTimeout = 2 * time.Second

	// DefaultWriteTimeout bounds a single write.
	DefaultWriteTimeout = 2 * time.Second

	// DefaultHealthTimeout bounds a health ping when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 3 * time.Second
)

// Secret is a string whose String, GoString and MarshalText forms are
// redacted. Use [Secret.Value] for the real value.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the unredacted secret.
func (s Secret) Value() string { return string(s) }

// MarshalText keeps the secret out of JSON and YAML dumps of a config.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the Redis connection settings. When URI is set it takes
// precedence over Host, Port, DB and Password.
//
// Env tags are relative; the gateway config nests this struct under a
// REDIS section so Host reads AGENTGATE_REDIS_HOST.
type Config struct {
	// URI is a redis:// or rediss:// connection string.
	URI string `json:"uri,omitempty" yaml:"uri,omitempty" env:"URI"`

	Host string `json:"host,omitempty" yaml:"host,omitempty" env:"HOST"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty" env:"PORT"`
	DB   int    `json:"db" yaml:"db" env:"DB"`

	Password Secret `json:"-" yaml:"password,omitempty" env:"PASSWORD"`

	PoolSize     int `json:"pool_size,omitempty" yaml:"pool_size,omitempty" env:"POOL_SIZE"`
	MinIdleConns int `json:"min_idle_conns,omitempty" yaml:"min_idle_conns,omitempty" env:"MIN_IDLE_CONNS"`

	// MaxRetries of 0 disables go-redis command retries, which keeps a
	// cache lookup from outliving the request that triggered it.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" env:"MAX_RETRIES"`

	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty" env:"WRITE_TIMEOUT"`

	// TLSEnabled turns on TLS for structured configs. A rediss:// URI
	// enables TLS on its own.
	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled,omitempty" env:"TLS_ENABLED"`
}

// DefaultConfig returns a Config pointing at localhost with default pool
// and timeout settings.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate applies defaults to zero-valued fields and checks the rest.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return sserr.Wrap(err, sserr.CodeValidationFormat, "redis: config URI is invalid")
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return sserr.Newf(sserr.CodeValidationFormat,
				"redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DB < 0 {
		return sserr.Newf(sserr.CodeValidationRange, "redis: config db must be >= 0, got %d", c.DB)
	}
	if c.PoolSize < 1 {
		return sserr.Newf(sserr.CodeValidationRange, "redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return sserr.Newf(sserr.CodeValidationRange,
			"redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	for name, d := range map[string]time.Duration{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if d < 0 {
			return sserr.Newf(sserr.CodeValidationRange,
				"redis: config %s must not be negative, got %v", name, d)
		}
	}
	return nil
}

// Addr returns host:port for structured configs.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 && c.PoolSize >= DefaultMinIdleConns {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement shortens s to maxStatementTruncateLen runes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
