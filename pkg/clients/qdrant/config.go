// Package qdrant provides the Qdrant client behind memory record
// retrieval. It wraps the official gRPC client (github.com/qdrant/go-client)
// with OpenTelemetry spans and maps failures onto agentgate error codes,
// classifying gRPC DeadlineExceeded as a store timeout.
//
// Tests inject a fake through [NewFromVectorDB].
package qdrant

import (
	"fmt"
	"time"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

const maxStatementTruncateLen = 100

const (
	DefaultHost     = "localhost"
	DefaultGRPCPort = 6334

	// DefaultHealthTimeout bounds the connect-time and Health checks when
	// the caller's context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string whose String, GoString and MarshalText forms are
// redacted.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string               { return redacted }
func (s Secret) GoString() string             { return redacted }
func (s Secret) Value() string                { return string(s) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the Qdrant connection settings. Env tags are relative to the
// QDRANT section of the gateway config.
type Config struct {
	Host     string `json:"host,omitempty" yaml:"host,omitempty" env:"HOST"`
	GRPCPort int    `json:"grpc_port,omitempty" yaml:"grpc_port,omitempty" env:"GRPC_PORT"`
	APIKey   Secret `json:"-" yaml:"api_key,omitempty" env:"API_KEY"`
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty" env:"USE_TLS"`

	HealthTimeout time.Duration `json:"health_timeout,omitempty" yaml:"health_timeout,omitempty" env:"HEALTH_TIMEOUT"`
}

// DefaultConfig returns a Config for a local Qdrant without TLS.
func DefaultConfig() *Config {
	return &Config{
		Host:          DefaultHost,
		GRPCPort:      DefaultGRPCPort,
		HealthTimeout: DefaultHealthTimeout,
	}
}

// Validate applies defaults to zero-valued fields and checks the rest.
func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = DefaultGRPCPort
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return sserr.Newf(sserr.CodeValidationRange,
			"qdrant: config grpc_port must be between 1 and 65535, got %d", c.GRPCPort)
	}
	if c.HealthTimeout < 0 {
		return sserr.Newf(sserr.CodeValidationRange,
			"qdrant: config health_timeout must not be negative, got %v", c.HealthTimeout)
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return nil
}

// GRPCAddress returns host:port of the gRPC endpoint.
func (c *Config) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
