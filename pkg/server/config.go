package server

import (
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// Server defaults.
const (
	DefaultAddress         = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultMaxRequestBodySize caps an inbound request body.
	DefaultMaxRequestBodySize = 1 << 20
)

// Config holds the HTTP listener settings.
type Config struct {
	// Address is the listen address.
	// Default: ":8080"
	Address string `json:"address" yaml:"address" env:"ADDRESS" envDefault:":8080"`

	// ReadTimeout bounds reading a whole request.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`

	// WriteTimeout bounds writing a response. It must exceed the runtime
	// request timeout or slow invocations are cut off mid-reply.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"90s"`

	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"120s"`

	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// MaxRequestBodySize caps the request body in bytes.
	// Default: 1 MiB
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size" env:"MAX_REQUEST_BODY_SIZE"`
}

// Validate applies defaults for zero-valued fields and rejects negative
// durations and sizes.
func (c *Config) Validate() error {
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return sserr.New(sserr.CodeValidationRange, "server: config timeouts must not be negative")
	}
	if c.MaxRequestBodySize < 0 {
		return sserr.New(sserr.CodeValidationRange, "server: config max_request_body_size must not be negative")
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.MaxRequestBodySize == 0 {
		c.MaxRequestBodySize = DefaultMaxRequestBodySize
	}
	return nil
}
